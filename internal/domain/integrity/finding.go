package integrity

import "sort"

// Reason classifies why a file was reported.
type Reason string

const (
	ReasonUnexpected          Reason = "Unexpected file"
	ReasonModified            Reason = "Modified file"
	ReasonWhitelistedModified Reason = "Whitelisted file modified"
	ReasonUnreadable          Reason = "Cannot read file"
)

func (r Reason) String() string {
	return string(r)
}

// Finding is one classified anomaly for an absolute path.
type Finding struct {
	Path   string `json:"path"`
	Reason Reason `json:"reason"`
	Digest string `json:"digest"`
}

// SortFindings orders findings by path.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Path < findings[j].Path
	})
}

// Mode selects which anomalies a scan detects.
type Mode uint8

const (
	// DetectNew reports files absent from the reference set.
	DetectNew Mode = 1 << iota
	// DetectModified reports reference files whose digest diverges.
	DetectModified
)

// Has reports whether every flag in flag is set.
func (m Mode) Has(flag Mode) bool {
	return m&flag == flag
}

// None reports whether no detection flag is set.
func (m Mode) None() bool {
	return m&(DetectNew|DetectModified) == 0
}

// ModeFrom builds a mode from the two CLI switches.
func ModeFrom(detectNew, detectModified bool) Mode {
	var m Mode
	if detectNew {
		m |= DetectNew
	}
	if detectModified {
		m |= DetectModified
	}
	return m
}
