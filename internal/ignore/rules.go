// Package ignore decides which directories and files a scan never looks at.
//
// A Rules value is declarative: directory names, file basenames, basename
// suffixes, basename regular expressions and relative path globs. Compile
// merges any number of rule sets into a Matcher that the scan engine
// consults for every directory and file it visits.
package ignore

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Rules is one declarative set of ignore predicates.
type Rules struct {
	Dirs     []string `mapstructure:"dirs"`
	Files    []string `mapstructure:"files"`
	Suffixes []string `mapstructure:"types"`
	Patterns []string `mapstructure:"patterns"`
	Paths    []string `mapstructure:"paths"`
}

// Defaults returns the rules every application scan starts from: version
// control and OS artefacts, and file types whose integrity is not tracked.
func Defaults() Rules {
	return Rules{
		Dirs:  []string{".hg", ".git", ".svn", ".DS_Store", ".DS._Store"},
		Files: []string{".DS_Store"},
		Suffixes: []string{
			".png", ".jpg", ".jpeg", ".gif", ".ico", ".flv", ".as",
			"php.ini", ".xml.gz", ".svg", ".psd", ".css", ".json", ".m4v", ".swf",
			".tar.gz", ".sql", ".sql.gz", ".zip", ".bak", ".old", ".pdf", ".doc",
			".docx", ".xml", ".txt", ".htm", ".html", ".shtml", "README", ".ftpquota",
			".GIF", ".PNG", ".JPG", ".db",
		},
		Patterns: []string{
			`^webhits-20[0-9]+\.html$`,
			`^google[a-z0-9]+\.html$`,
			`^sitemap\.xml`,
			`^BingSiteAuth\.xml$`,
			`^\.htaccess`,
			`^robots\.txt$`,
		},
	}
}

// Merge returns a rule set holding the predicates of r followed by other.
func (r Rules) Merge(other Rules) Rules {
	return Rules{
		Dirs:     append(append([]string(nil), r.Dirs...), other.Dirs...),
		Files:    append(append([]string(nil), r.Files...), other.Files...),
		Suffixes: append(append([]string(nil), r.Suffixes...), other.Suffixes...),
		Patterns: append(append([]string(nil), r.Patterns...), other.Patterns...),
		Paths:    append(append([]string(nil), r.Paths...), other.Paths...),
	}
}

// Matcher is a compiled, read-only Rules value safe for concurrent use.
type Matcher struct {
	dirs     map[string]struct{}
	files    map[string]struct{}
	suffixes []string
	patterns []*regexp.Regexp
	globs    []glob.Glob
}

// Compile merges the given rule sets and compiles their patterns.
func Compile(sets ...Rules) (*Matcher, error) {
	var all Rules
	for _, s := range sets {
		all = all.Merge(s)
	}

	m := &Matcher{
		dirs:     toSet(all.Dirs),
		files:    toSet(all.Files),
		suffixes: nonEmpty(all.Suffixes),
	}
	for _, p := range nonEmpty(all.Patterns) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	for _, p := range nonEmpty(all.Paths) {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile ignore path %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// MustCompile is Compile for rule sets known to be valid.
func MustCompile(sets ...Rules) *Matcher {
	m, err := Compile(sets...)
	if err != nil {
		panic(err)
	}
	return m
}

// SkipDirectory reports whether files directly inside relDir are ignored.
// relDir is slash-separated and relative to the install root; "" is the
// root itself. Any segment naming an ignored directory disqualifies it.
func (m *Matcher) SkipDirectory(relDir string) bool {
	if m == nil || relDir == "" {
		return false
	}
	for _, seg := range strings.Split(relDir, "/") {
		if _, ok := m.dirs[seg]; ok {
			return true
		}
	}
	return false
}

// SkipFile reports whether the file at relPath is ignored.
func (m *Matcher) SkipFile(relPath string) bool {
	return m.Reason(relPath) != ""
}

// Reason names the predicate that ignores relPath, or "" when none does.
func (m *Matcher) Reason(relPath string) string {
	if m == nil {
		return ""
	}
	base := path.Base(relPath)
	if _, ok := m.files[base]; ok {
		return "ignored file"
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(base, suffix) {
			return fmt.Sprintf("ignored file type %q", suffix)
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(base) {
			return fmt.Sprintf("ignored file pattern %q", re.String())
		}
	}
	for _, g := range m.globs {
		if g.Match(relPath) {
			return "ignored path"
		}
	}
	return ""
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range nonEmpty(values) {
		set[v] = struct{}{}
	}
	return set
}

// nonEmpty drops blank entries; an empty suffix would ignore every file.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
