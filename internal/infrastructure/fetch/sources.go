package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/security"
)

// Endpoints are the vendor download locations.
type Endpoints struct {
	WordPress string
	Drupal    string
	Joomla    string
}

// DefaultEndpoints point at the official release mirrors.
var DefaultEndpoints = Endpoints{
	WordPress: "https://downloads.wordpress.org",
	Drupal:    "https://ftp.drupal.org/files/projects",
	Joomla:    "https://github.com/joomla/joomla-cms/releases/download",
}

// source describes how to turn one vendor archive into a reference set.
type source struct {
	url         string
	stripTopDir bool
	ignoreFiles []string
	// skip reports whether a relative path belongs to something else's
	// reference set.
	skip func(rel string) bool
	// finish adjusts the digests once every entry has been hashed.
	finish func(files map[string]integrity.Digest)
}

func (e Endpoints) sourceFor(application, version string) (source, error) {
	if err := security.ValidateSegment(version); err != nil {
		return source{}, fmt.Errorf("%w: version %v", sharedErrors.ErrInvalidReferenceKey, err)
	}
	v := url.PathEscape(version)

	switch application {
	case "wordpress-core":
		return source{
			url:         fmt.Sprintf("%s/release/wordpress-%s.zip", e.WordPress, v),
			stripTopDir: true,
			ignoreFiles: []string{"wp-config.php"},
			skip:        bundledWordPressAddon,
			finish:      mergeWordPressLegacy,
		}, nil
	case "drupal-core":
		return source{
			url:         fmt.Sprintf("%s/drupal-%s.tar.gz", e.Drupal, v),
			stripTopDir: true,
			ignoreFiles: []string{"htaccess.txt"},
		}, nil
	case "joomla-core":
		return source{
			url:         fmt.Sprintf("%s/%s/Joomla_%s-Stable-Full_Package.tar.gz", e.Joomla, v, v),
			ignoreFiles: []string{"htaccess.txt"},
		}, nil
	}

	for _, kind := range []string{"plugin", "theme"} {
		prefix := "wordpress-" + kind + "-"
		if slug, ok := strings.CutPrefix(application, prefix); ok && slug != "" {
			return source{
				url:         fmt.Sprintf("%s/%s/%s.%s.zip", e.WordPress, kind, url.PathEscape(slug), v),
				stripTopDir: true,
			}, nil
		}
	}
	return source{}, fmt.Errorf("%w: %s", sharedErrors.ErrInvalidReferenceKey, application)
}

// bundledWordPressAddon matches files of the plugins and themes shipped in
// the core archive. Those are checked by addon scans against their own
// releases; only the top-level files of wp-content/plugins and
// wp-content/themes stay in the core set.
func bundledWordPressAddon(rel string) bool {
	for _, dir := range []string{"wp-content/plugins/", "wp-content/themes/"} {
		if rest, ok := strings.CutPrefix(rel, dir); ok && strings.Contains(rest, "/") {
			return true
		}
	}
	return false
}
