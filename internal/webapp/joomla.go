package webapp

import (
	"strings"

	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
)

// Joomla moved its version class twice; the newest layout is tried first.
type Joomla struct{}

func (Joomla) Name() string         { return "joomla" }
func (Joomla) ReferenceKey() string { return "joomla-core" }

func (Joomla) DetectVersion(root string) (string, bool) {
	if v, ok := joomlaConstVersion(root, "libraries/src/Version.php"); ok {
		return v, true
	}
	for _, marker := range []string{"libraries/cms/version/version.php", "libraries/joomla/version.php"} {
		if v, ok := joomlaReleaseVersion(root, marker); ok {
			return v, true
		}
	}
	return "", false
}

// joomlaConstVersion reads the 3.8+ MAJOR_VERSION/MINOR_VERSION/PATCH_VERSION constants.
func joomlaConstVersion(root, marker string) (string, bool) {
	var major, minor, patch string
	found := readMarker(root, marker, func(line string) bool {
		switch {
		case strings.Contains(line, "MAJOR_VERSION ="):
			major = assigned(line)
		case strings.Contains(line, "MINOR_VERSION ="):
			minor = assigned(line)
		case strings.Contains(line, "PATCH_VERSION ="):
			patch = assigned(line)
		}
		return major == "" || minor == "" || patch == ""
	})
	if !found || major == "" || minor == "" || patch == "" {
		return "", false
	}
	version := major + "." + minor + "." + patch
	if !majorIn(version, 1, 6) {
		return "", false
	}
	return version, true
}

// joomlaReleaseVersion reads `public $RELEASE = '3.4';` and
// `public $DEV_LEVEL = '8';` (or their const forms) into "3.4.8".
func joomlaReleaseVersion(root, marker string) (string, bool) {
	var release, devLevel string
	found := readMarker(root, marker, func(line string) bool {
		switch {
		case strings.Contains(line, "RELEASE ="):
			release = quoted(line)
		case strings.Contains(line, "DEV_LEVEL ="):
			devLevel = quoted(line)
		}
		return true
	})
	if !found || release == "" || devLevel == "" {
		return "", false
	}
	version := release + "." + devLevel
	if !majorIn(version, 1, 6) {
		return "", false
	}
	return version, true
}

func (Joomla) IgnoreRules() ignore.Rules {
	return ignore.Rules{
		Dirs:     []string{"language"},
		Files:    []string{"configuration.php", "error.php", "joomla_update.php"},
		Suffixes: []string{".ini"},
	}
}
