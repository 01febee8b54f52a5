// Package scanner walks an install root and classifies every file against a
// reference digest set and the operator's whitelist.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// Whitelist is the view of the operator whitelist a scan needs. Add must be
// durable before it returns.
type Whitelist interface {
	Lookup(path string) (string, bool)
	Add(ctx context.Context, path, digest string) error
}

// Options control a single scan.
type Options struct {
	Mode integrity.Mode

	// Promote writes every surviving finding into the whitelist and drops
	// it from the result.
	Promote bool

	// RestrictToReferenceDirs limits file checks to the root and the
	// directories that hold at least one reference path.
	RestrictToReferenceDirs bool

	// Matcher defaults to the engine defaults when nil.
	Matcher *ignore.Matcher
}

// Result is the outcome of one scan. Findings are keyed by absolute path.
type Result struct {
	Findings     map[string]integrity.Finding
	SkippedDirs  []string
	Promoted     []string
	FilesChecked int
}

// Sorted returns the findings ordered by path.
func (r *Result) Sorted() []integrity.Finding {
	out := make([]integrity.Finding, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f)
	}
	integrity.SortFindings(out)
	return out
}

// Engine is stateless between scans and safe to share across goroutines.
type Engine struct {
	logger *zap.SugaredLogger
	hasher *Hasher
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{logger: logger, hasher: NewHasher()}
}

var defaultMatcher = ignore.MustCompile(ignore.Defaults())

// Scan checks every eligible file under root. root must be absolute. A nil
// whitelist is treated as empty and cannot be combined with Promote.
func (e *Engine) Scan(ctx context.Context, root string, refs *integrity.ReferenceDigestSet, wl Whitelist, opts Options) (*Result, error) {
	result := &Result{Findings: make(map[string]integrity.Finding)}
	if opts.Mode.None() {
		e.logger.Infow("No scan mode selected, nothing to be done", "root", root)
		return result, nil
	}
	if refs == nil {
		return nil, sharedErrors.ErrReferenceUnavailable
	}
	if wl == nil {
		if opts.Promote {
			return nil, errors.New("whitelist promotion requires a whitelist")
		}
		wl = emptyWhitelist{}
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = defaultMatcher
	}

	root = filepath.Clean(root)
	s := &scan{
		engine:  e,
		root:    root,
		refs:    refs,
		wl:      wl,
		opts:    opts,
		matcher: matcher,
		result:  result,
	}
	if opts.RestrictToReferenceDirs {
		s.scanned = refs.Directories()
		s.ancestors = ancestorsOf(s.scanned)
	}

	if err := walk(ctx, root, s.visit); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", sharedErrors.ErrDirectoryUnlistable, root, err)
	}

	if opts.Promote {
		if err := s.promote(ctx); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type scan struct {
	engine    *Engine
	root      string
	refs      *integrity.ReferenceDigestSet
	wl        Whitelist
	opts      Options
	matcher   *ignore.Matcher
	scanned   map[string]struct{}
	ancestors map[string]struct{}
	result    *Result
}

func (s *scan) visit(rel string, d fs.DirEntry, walkErr error) error {
	log := s.engine.logger
	abs := s.abs(rel)

	if walkErr != nil {
		log.Warnw("Cannot list directory", "dir", abs, "error", walkErr)
		s.result.SkippedDirs = append(s.result.SkippedDirs, abs)
		return nil
	}

	if d.IsDir() {
		if s.matcher.SkipDirectory(rel) {
			log.Debugw("Skipping ignored directory", "dir", abs)
			return fs.SkipDir
		}
		if s.scanned != nil && !s.inScope(rel) {
			log.Debugw("Skipping directory", "dir", abs)
			return fs.SkipDir
		}
		return nil
	}

	if s.scanned != nil {
		if _, ok := s.scanned[parentOf(rel)]; !ok {
			return nil
		}
	}
	if s.matcher.SkipFile(rel) {
		log.Debugw("Skipping ignored file", "file", abs, "rule", s.matcher.Reason(rel))
		return nil
	}
	if !s.checkable(abs, d) {
		return nil
	}

	s.check(rel, abs)
	return nil
}

func (s *scan) inScope(rel string) bool {
	if _, ok := s.scanned[rel]; ok {
		return true
	}
	_, ok := s.ancestors[rel]
	return ok
}

// checkable filters out sockets, devices, pipes and symlinks to directories.
func (s *scan) checkable(abs string, d fs.DirEntry) bool {
	mode := d.Type()
	if mode.IsRegular() {
		return true
	}
	if mode&fs.ModeSymlink == 0 {
		s.engine.logger.Debugw("Skipping irregular file", "file", abs, "mode", mode.String())
		return false
	}
	info, err := os.Stat(abs)
	if err != nil {
		// Dangling link; report it as unreadable.
		return true
	}
	return info.Mode().IsRegular()
}

func (s *scan) check(rel, abs string) {
	s.result.FilesChecked++

	current, err := s.engine.hasher.File(abs)
	if err != nil {
		s.suspect(abs, integrity.ReasonUnreadable, integrity.UnreadableDigest)
		return
	}

	reference, known := s.refs.Lookup(rel)
	switch {
	case !known && s.opts.Mode.Has(integrity.DetectNew):
		s.suspect(abs, integrity.ReasonUnexpected, current)
	case known && s.opts.Mode.Has(integrity.DetectModified):
		if reference.Matches(current) {
			s.engine.logger.Debugw("File not modified", "file", abs)
			return
		}
		s.suspect(abs, integrity.ReasonModified, current)
	}
}

// suspect applies empty-file suppression and whitelist escalation.
func (s *scan) suspect(abs string, reason integrity.Reason, digest string) {
	log := s.engine.logger
	if digest == integrity.EmptyFileDigest {
		log.Debugw("Skipping empty file", "file", abs)
		return
	}
	if accepted, ok := s.wl.Lookup(abs); ok {
		if accepted == digest {
			return
		}
		reason = integrity.ReasonWhitelistedModified
	}
	log.Debugw(reason.String(), "file", abs)
	s.result.Findings[abs] = integrity.Finding{Path: abs, Reason: reason, Digest: digest}
}

func (s *scan) promote(ctx context.Context) error {
	paths := make([]string, 0, len(s.result.Findings))
	for p := range s.result.Findings {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := s.wl.Add(ctx, p, s.result.Findings[p].Digest); err != nil {
			return fmt.Errorf("add %s to whitelist: %w", p, err)
		}
		delete(s.result.Findings, p)
		s.result.Promoted = append(s.result.Promoted, p)
		s.engine.logger.Debugw("Added to whitelist", "file", p)
	}
	return nil
}

func (s *scan) abs(rel string) string {
	if rel == "" {
		return s.root
	}
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func parentOf(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}

// ancestorsOf returns every proper ancestor of the given relative directories.
func ancestorsOf(dirs map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for d := range dirs {
		for d != "" {
			idx := strings.LastIndex(d, "/")
			if idx < 0 {
				d = ""
			} else {
				d = d[:idx]
			}
			out[d] = struct{}{}
		}
	}
	return out
}

type emptyWhitelist struct{}

func (emptyWhitelist) Lookup(string) (string, bool) { return "", false }

func (emptyWhitelist) Add(context.Context, string, string) error {
	return errors.New("whitelist is read-only")
}
