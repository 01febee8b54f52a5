package webapp

import (
	"strings"

	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
)

// Drupal 8 and later keep the authoritative version in core/lib/Drupal.php;
// 6.x and 7.x only have it as the newest CHANGELOG entry.
type Drupal struct{}

func (Drupal) Name() string         { return "drupal" }
func (Drupal) ReferenceKey() string { return "drupal-core" }

func (Drupal) DetectVersion(root string) (string, bool) {
	var version string
	readMarker(root, "core/lib/Drupal.php", func(line string) bool {
		if strings.Contains(line, "const VERSION =") {
			version = quoted(line)
			return false
		}
		return true
	})
	if version == "" {
		for _, marker := range []string{"CHANGELOG.txt", "core/CHANGELOG.txt"} {
			if version = drupalChangelogVersion(root, marker); version != "" {
				break
			}
		}
	}
	if !majorIn(version, 6, 11) {
		return "", false
	}
	return version, true
}

// drupalChangelogVersion returns X.Y from the first "Drupal X.Y, date" line.
func drupalChangelogVersion(root, marker string) string {
	var version string
	readMarker(root, marker, func(line string) bool {
		if !strings.HasPrefix(line, "Drupal ") {
			return true
		}
		fields := strings.Fields(line)
		if len(fields) > 1 {
			version = strings.TrimSuffix(fields[1], ",")
		}
		return false
	})
	return version
}

func (Drupal) IgnoreRules() ignore.Rules {
	return ignore.Rules{
		Dirs:  []string{"files"},
		Files: []string{"settings.php", "settings.local.php", "error_log"},
	}
}
