package whitelist

import (
	"path/filepath"
	"sort"
	"strings"

	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// Whitelist is the operator-curated set of accepted anomalies for one
// install root: absolute path to the digest the file had when accepted.
// It serves as an aggregate root; persistence is the repository's job.
type Whitelist struct {
	root    string
	entries map[string]string
}

// New creates an empty whitelist for an absolute install root.
func New(root string) (*Whitelist, error) {
	if root == "" {
		return nil, sharedErrors.ErrEmptyWhitelistRoot
	}
	return &Whitelist{
		root:    filepath.Clean(root),
		entries: make(map[string]string),
	}, nil
}

// Reconstruct creates a whitelist from persisted data (for repository use)
func Reconstruct(root string, entries map[string]string) *Whitelist {
	copied := make(map[string]string, len(entries))
	for p, d := range entries {
		copied[p] = d
	}
	return &Whitelist{
		root:    root,
		entries: copied,
	}
}

// Root returns the install root the whitelist belongs to.
func (w *Whitelist) Root() string {
	return w.root
}

// Lookup returns the accepted digest for path.
func (w *Whitelist) Lookup(path string) (string, bool) {
	d, ok := w.entries[path]
	return d, ok
}

// Add accepts path with its current digest, replacing any earlier entry.
func (w *Whitelist) Add(path, digest string) error {
	if !filepath.IsAbs(path) {
		return sharedErrors.ErrRelativeWhitelistPath
	}
	w.entries[path] = digest
	return nil
}

// RemoveMatching drops every entry whose path contains substr and returns
// the removed paths in order. Nothing matching is not an error.
func (w *Whitelist) RemoveMatching(substr string) []string {
	var removed []string
	for p := range w.entries {
		if strings.Contains(p, substr) {
			removed = append(removed, p)
		}
	}
	for _, p := range removed {
		delete(w.entries, p)
	}
	sort.Strings(removed)
	return removed
}

// Entries returns a copy of the whitelist contents.
func (w *Whitelist) Entries() map[string]string {
	copied := make(map[string]string, len(w.entries))
	for p, d := range w.entries {
		copied[p] = d
	}
	return copied
}

// Paths returns the whitelisted paths in order.
func (w *Whitelist) Paths() []string {
	paths := make([]string, 0, len(w.entries))
	for p := range w.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of entries.
func (w *Whitelist) Len() int {
	return len(w.entries)
}
