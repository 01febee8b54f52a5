// Package inventory lists installed WordPress plugins and themes through wp-cli.
package inventory

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
	"github.com/khanhnv2901/webapp-tripwire/internal/webapp"
)

// Addon is one row of `wp <kind> list`.
type Addon struct {
	Name    string
	Status  string
	Update  string
	Version string
}

// runFunc executes a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// WPCLI queries a WordPress install with the wp command.
type WPCLI struct {
	binary string
	logger *zap.SugaredLogger
	run    runFunc
}

// NewWPCLI creates an inventory backed by the wp binary. An empty binary
// means "wp" from PATH.
func NewWPCLI(binary string, logger *zap.SugaredLogger) *WPCLI {
	if binary == "" {
		binary = "wp"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WPCLI{binary: binary, logger: logger, run: execOutput}
}

// ListInstalled returns the installed addons of kind in wp-cli's order.
func (w *WPCLI) ListInstalled(ctx context.Context, root string, kind webapp.AddonKind) ([]Addon, error) {
	out, err := w.run(ctx, w.binary, string(kind), "list",
		"--fields=name,status,update,version",
		"--format=table",
		"--skip-plugins",
		"--skip-themes",
		"--path="+root)
	if err != nil {
		return nil, fmt.Errorf("wp %s list failed for %s: %w", kind, root, err)
	}
	addons, err := ParseTable(out)
	if err != nil {
		return nil, fmt.Errorf("wp %s list for %s: %w", kind, root, err)
	}
	return addons, nil
}

// Dir returns the directory holding addons of kind, falling back to the
// stock wp-content location when wp-cli cannot tell.
func (w *WPCLI) Dir(ctx context.Context, root string, kind webapp.AddonKind) (string, error) {
	fallback := filepath.Join(root, "wp-content", string(kind)+"s")

	out, err := w.run(ctx, w.binary, string(kind), "path", "--skip-plugins", "--skip-themes", "--path="+root)
	if err != nil {
		w.logger.Debugw("wp path lookup failed, using default", "kind", kind, "root", root, "error", err)
		return fallback, nil
	}
	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return fallback, nil
	}
	return dir, nil
}

// ParseTable parses wp-cli's tab separated table output. The header must be
// exactly "name status update version"; rows with a different column count
// keep only the name.
func ParseTable(out []byte) ([]Addon, error) {
	var (
		addons    []Addon
		validated bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !validated {
			if strings.Join(fields, " ") != "name status update version" {
				return nil, fmt.Errorf("%w: header %q", sharedErrors.ErrInventoryFormat, scanner.Text())
			}
			validated = true
			continue
		}
		if len(fields) == 4 {
			addons = append(addons, Addon{Name: fields[0], Status: fields[1], Update: fields[2], Version: fields[3]})
			continue
		}
		addons = append(addons, Addon{Name: fields[0]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !validated {
		return nil, fmt.Errorf("%w: empty output", sharedErrors.ErrInventoryFormat)
	}
	return addons, nil
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
