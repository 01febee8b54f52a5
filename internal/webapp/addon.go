package webapp

import (
	"fmt"

	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// AddonKind is a WordPress extension type.
type AddonKind string

const (
	AddonPlugin AddonKind = "plugin"
	AddonTheme  AddonKind = "theme"
)

// ParseAddonKind validates a plugin/theme kind.
func ParseAddonKind(s string) (AddonKind, error) {
	switch AddonKind(s) {
	case AddonPlugin, AddonTheme:
		return AddonKind(s), nil
	}
	return "", fmt.Errorf("%w: %s", sharedErrors.ErrUnknownAddonKind, s)
}

// Addon adapts one installed WordPress plugin or theme. Its version comes
// from the addon inventory rather than a marker file.
type Addon struct {
	Kind    AddonKind
	Slug    string
	Version string
}

func (a Addon) Name() string { return a.Slug }

// ReferenceKey namespaces addons as wordpress-<kind>-<slug>.
func (a Addon) ReferenceKey() string {
	return fmt.Sprintf("wordpress-%s-%s", a.Kind, a.Slug)
}

func (a Addon) DetectVersion(string) (string, bool) {
	return a.Version, a.Version != ""
}

func (a Addon) IgnoreRules() ignore.Rules {
	return ignore.Rules{}
}
