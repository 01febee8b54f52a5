package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"

	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

func TestTargetError(t *testing.T) {
	inner := fmt.Errorf("wordpress 6.5: %w", sharedErrors.ErrReferenceUnavailable)
	err := &TargetError{Target: "/srv/site", Err: inner}

	want := "/srv/site: wordpress 6.5: reference checksums unavailable"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}
	if !errors.Is(err, sharedErrors.ErrReferenceUnavailable) {
		t.Fatal("TargetError must unwrap to the cause")
	}

	bare := &TargetError{Err: errors.New("boom")}
	if bare.Error() != "boom" {
		t.Fatalf("unexpected error string %s", bare.Error())
	}
}

func TestPrintTargetErrorHints(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = original })

	tests := []struct {
		name string
		err  error
		hint string
	}{
		{name: "unavailable", err: sharedErrors.ErrReferenceUnavailable, hint: "checksums fetch"},
		{name: "timeout", err: sharedErrors.ErrFetchTimeout, hint: "--fetch-timeout"},
		{name: "other", err: errors.New("boom"), hint: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printTargetError(&buf, &TargetError{Target: "/srv/site", Err: tt.err})
			out := buf.String()
			if !strings.HasPrefix(out, "Error: /srv/site: ") {
				t.Fatalf("unexpected diagnostic %q", out)
			}
			if tt.hint != "" && !strings.Contains(out, tt.hint) {
				t.Fatalf("expected hint %q in %q", tt.hint, out)
			}
		})
	}
}
