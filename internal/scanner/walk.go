package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

var errNotDir = errors.New("not a directory")

// walkFunc receives the slash-separated path relative to the walk root
// ("" for the root itself). A non-nil err means the directory at rel could
// not be listed. Returning fs.SkipDir from a directory prunes it.
type walkFunc func(rel string, d fs.DirEntry, err error) error

// walk is a depth-first, stack-based traversal. Children are visited in
// lexical order and symlinked directories are not followed.
func walk(ctx context.Context, root string, fn walkFunc) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "walk", Path: root, Err: errNotDir}
	}

	type item struct {
		rel   string
		entry fs.DirEntry
	}
	stack := []item{{rel: "", entry: fs.FileInfoToDirEntry(info)}}
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(current.rel, current.entry, nil); err != nil {
			if err == fs.SkipDir {
				continue
			}
			return err
		}
		if !current.entry.IsDir() {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(current.rel)))
		if err != nil {
			if ferr := fn(current.rel, current.entry, err); ferr != nil && ferr != fs.SkipDir {
				return ferr
			}
			continue
		}
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, item{
				rel:   path.Join(current.rel, entries[i].Name()),
				entry: entries[i],
			})
		}
	}
	return nil
}
