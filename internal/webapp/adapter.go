// Package webapp holds the per-application knowledge the scan engine needs:
// where each CMS keeps its version marker, how to read it, which reference
// checksum key it uses, and which files it expects operators to customise.
//
// Everything else about a scan is shared and lives in the scanner package.
package webapp

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// Adapter specialises the scan engine for one application.
type Adapter interface {
	// Name is the short CLI name, e.g. "wordpress".
	Name() string

	// ReferenceKey namespaces the application in the reference checksum store.
	ReferenceKey() string

	// DetectVersion reads the version marker under root. It returns false
	// when root does not look like an install of this application.
	DetectVersion(root string) (string, bool)

	// IgnoreRules are added to the base engine defaults.
	IgnoreRules() ignore.Rules
}

var registry = map[string]Adapter{
	"wordpress": WordPress{},
	"joomla":    Joomla{},
	"drupal":    Drupal{},
}

// Lookup returns the adapter registered under name.
func Lookup(name string) (Adapter, error) {
	a, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrUnknownApplication, name)
	}
	return a, nil
}

// Names lists the registered adapter names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// readMarker feeds each line of root/rel to fn until fn returns false.
// It reports whether the file could be opened.
func readMarker(root, rel string, fn func(line string) bool) bool {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if !fn(scanner.Text()) {
			break
		}
	}
	return true
}

// quoted returns the text between the first pair of single or double quotes.
func quoted(line string) string {
	for _, q := range []string{"'", `"`} {
		parts := strings.SplitN(line, q, 3)
		if len(parts) == 3 {
			return parts[1]
		}
	}
	return ""
}

// assigned returns the right-hand side of "NAME = value;" with quotes and
// the trailing semicolon removed.
func assigned(line string) string {
	_, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	if q := quoted(rhs); q != "" {
		return q
	}
	rhs = strings.TrimSpace(rhs)
	rhs = strings.TrimSuffix(rhs, ";")
	return strings.TrimSpace(rhs)
}

// majorIn reports whether the leading numeric component of version lies in [min, max].
func majorIn(version string, min, max int) bool {
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return false
	}
	return major >= min && major <= max
}

// AtLeast reports whether dotted version v is greater than or equal to min.
// Each component is compared by its leading digits, so "4.9-RC1" reads as 4.9.
func AtLeast(v, min string) bool {
	a := versionParts(v)
	b := versionParts(min)
	for len(a) < len(b) {
		a = append(a, 0)
	}
	for len(b) < len(a) {
		b = append(b, 0)
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return true
}

func versionParts(v string) []int {
	fields := strings.Split(v, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		end := 0
		for end < len(f) && f[end] >= '0' && f[end] <= '9' {
			end++
		}
		n, _ := strconv.Atoi(f[:end])
		parts = append(parts, n)
	}
	return parts
}
