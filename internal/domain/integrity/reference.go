package integrity

import (
	"context"
	"path"
	"sort"
	"strings"
)

// ReferenceDigestSet is the vendor-published digest of every file shipped
// with one version of one application, keyed by slash-separated path
// relative to the install root. It is immutable once built.
type ReferenceDigestSet struct {
	application string
	version     string
	files       map[string]Digest
}

// NewReferenceDigestSet copies files into a new reference set. Leading
// slashes and "./" prefixes are stripped from the keys.
func NewReferenceDigestSet(application, version string, files map[string]Digest) *ReferenceDigestSet {
	copied := make(map[string]Digest, len(files))
	for rel, d := range files {
		copied[NormalizeRelPath(rel)] = d
	}
	return &ReferenceDigestSet{
		application: application,
		version:     version,
		files:       copied,
	}
}

// Application returns the reference key the set belongs to.
func (r *ReferenceDigestSet) Application() string {
	return r.application
}

// Version returns the application version the set describes.
func (r *ReferenceDigestSet) Version() string {
	return r.version
}

// Lookup returns the expected digest for a relative path.
func (r *ReferenceDigestSet) Lookup(rel string) (Digest, bool) {
	d, ok := r.files[rel]
	return d, ok
}

// Len returns the number of reference files.
func (r *ReferenceDigestSet) Len() int {
	return len(r.files)
}

// Paths returns every reference path in lexical order.
func (r *ReferenceDigestSet) Paths() []string {
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Files returns a copy of the path to digest mapping.
func (r *ReferenceDigestSet) Files() map[string]Digest {
	copied := make(map[string]Digest, len(r.files))
	for p, d := range r.files {
		copied[p] = d
	}
	return copied
}

// Directories returns the relative directories holding at least one
// reference file. The install root is always included as "".
func (r *ReferenceDigestSet) Directories() map[string]struct{} {
	dirs := map[string]struct{}{"": {}}
	for p := range r.files {
		if dir := path.Dir(p); dir != "." {
			dirs[dir] = struct{}{}
		}
	}
	return dirs
}

// NormalizeRelPath turns a relative path into the key form used by reference sets.
func NormalizeRelPath(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimPrefix(rel, "./")
	return strings.Trim(rel, "/")
}

// Store resolves the reference digest set for an application version.
// Implementations return ErrReferenceUnavailable when nothing is cached.
type Store interface {
	Resolve(ctx context.Context, application, version string) (*ReferenceDigestSet, error)
}

// Repository persists reference digest sets.
type Repository interface {
	Save(ctx context.Context, set *ReferenceDigestSet) error
	Find(ctx context.Context, application, version string) (*ReferenceDigestSet, error)
	Versions(ctx context.Context, application string) ([]string, error)
	Applications(ctx context.Context) ([]string, error)
}
