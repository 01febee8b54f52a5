package cmd

import "fmt"

// TargetError reports a fatal failure for one target of a batch.
type TargetError struct {
	Target string
	Err    error
}

func (e *TargetError) Error() string {
	if e.Target == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Target, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}
