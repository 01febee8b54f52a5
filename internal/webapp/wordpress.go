package webapp

import (
	"strings"

	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
)

// WordPress reads $wp_version from wp-includes/version.php.
type WordPress struct{}

func (WordPress) Name() string         { return "wordpress" }
func (WordPress) ReferenceKey() string { return "wordpress-core" }

// DetectVersion parses a line such as `$wp_version = '6.4.2';`. The last
// such line wins.
func (WordPress) DetectVersion(root string) (string, bool) {
	var version string
	found := readMarker(root, "wp-includes/version.php", func(line string) bool {
		if strings.HasPrefix(line, "$wp_version =") {
			version = quoted(line)
		}
		return true
	})
	if !found || !majorIn(version, 1, 9) {
		return "", false
	}
	return version, true
}

func (WordPress) IgnoreRules() ignore.Rules {
	return ignore.Rules{
		Files: []string{"error_log", "wp-config.php"},
	}
}
