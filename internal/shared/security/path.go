package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape indicates the resolved path would escape the trusted root directory.
	ErrPathEscape = errors.New("path escapes base directory")
	// ErrInvalidSegment indicates a name that cannot be used as a single path element.
	ErrInvalidSegment = errors.New("invalid path segment")
)

// ResolveWithin joins the provided path elements under the given base directory and ensures
// the resulting path never traverses outside of that base. The returned path is absolute.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errors.New("base directory is required")
	}

	cleanBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}

	joined := filepath.Join(append([]string{cleanBase}, elems...)...)
	target, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve target path: %w", err)
	}

	rel, err := filepath.Rel(cleanBase, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}

	return target, nil
}

// ValidateSegment rejects names that would not stay a single file name once
// joined into a path: empty names, "." and "..", separators and NUL bytes.
// Application keys and versions end up as file names in the data directory.
func ValidateSegment(name string) error {
	switch name {
	case "":
		return fmt.Errorf("%w: empty", ErrInvalidSegment)
	case ".", "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSegment, name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidSegment, name)
	}
	return nil
}

// Abs returns the cleaned absolute form of path with symlinks left untouched.
// Whitelist entries and findings are keyed by this form.
func Abs(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
