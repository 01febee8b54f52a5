// Package tripwire ties version detection, reference resolution, the
// whitelist and the scan engine together for one install root.
package tripwire

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	whitelistapp "github.com/khanhnv2901/webapp-tripwire/internal/application/whitelist"
	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
	"github.com/khanhnv2901/webapp-tripwire/internal/infrastructure/inventory"
	"github.com/khanhnv2901/webapp-tripwire/internal/scanner"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/security"
	"github.com/khanhnv2901/webapp-tripwire/internal/webapp"
)

// References resolves reference sets, fetching them on a miss.
type References interface {
	ResolveOrFetch(ctx context.Context, application, version string, timeout time.Duration) (*integrity.ReferenceDigestSet, error)
}

// Whitelists opens the whitelist of one install root.
type Whitelists interface {
	Open(ctx context.Context, root string) (*whitelistapp.Session, error)
}

// Inventory lists installed WordPress addons.
type Inventory interface {
	ListInstalled(ctx context.Context, root string, kind webapp.AddonKind) ([]inventory.Addon, error)
	Dir(ctx context.Context, root string, kind webapp.AddonKind) (string, error)
}

// Options apply to every scan of one invocation.
type Options struct {
	Mode         integrity.Mode
	Promote      bool
	AllDirs      bool
	FetchTimeout time.Duration
	// Ignore is added to the engine defaults and the adapter's rules.
	Ignore ignore.Rules
}

// Report is the outcome of scanning one install root or addon directory.
type Report struct {
	Target       string
	Application  string
	Version      string
	Detected     bool
	Findings     []integrity.Finding
	SkippedDirs  []string
	Promoted     []string
	FilesChecked int
}

// Service provides the scan use cases.
type Service struct {
	engine     *scanner.Engine
	references References
	whitelists Whitelists
	inventory  Inventory
	logger     *zap.SugaredLogger
}

// NewService creates a new tripwire service. inv may be nil when addon
// scans are not needed.
func NewService(engine *scanner.Engine, refs References, wls Whitelists, inv Inventory, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		engine:     engine,
		references: refs,
		whitelists: wls,
		inventory:  inv,
		logger:     logger,
	}
}

// DetectVersion reports the version of adapter's application under root.
func (s *Service) DetectVersion(adapter webapp.Adapter, root string) (string, bool) {
	return adapter.DetectVersion(root)
}

// ScanCore scans the application core under root. A root that is not an
// install of the adapter's application yields an empty, undetected report.
func (s *Service) ScanCore(ctx context.Context, adapter webapp.Adapter, root string, opts Options) (*Report, error) {
	root, err := security.Abs(root)
	if err != nil {
		return nil, err
	}

	report := &Report{Target: root, Application: adapter.ReferenceKey()}
	version, ok := adapter.DetectVersion(root)
	if !ok {
		s.logger.Debugw("No version marker found", "root", root, "application", adapter.Name())
		return report, nil
	}
	report.Version = version
	report.Detected = true
	s.logger.Infow("Detected application", "root", root, "application", adapter.Name(), "version", version)

	if opts.Mode.None() {
		return report, nil
	}

	refs, err := s.references.ResolveOrFetch(ctx, adapter.ReferenceKey(), version, opts.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", adapter.Name(), version, err)
	}
	session, err := s.whitelists.Open(ctx, root)
	if err != nil {
		return nil, err
	}
	matcher, err := ignore.Compile(ignore.Defaults(), adapter.IgnoreRules(), opts.Ignore)
	if err != nil {
		return nil, err
	}

	if err := s.scanInto(ctx, report, root, refs, session, matcher, opts); err != nil {
		return nil, err
	}
	return report, nil
}

// ScanAddons scans every installed WordPress plugin or theme of root
// against its published release. Addons with no published reference are
// skipped.
func (s *Service) ScanAddons(ctx context.Context, root string, kind webapp.AddonKind, opts Options) ([]*Report, error) {
	root, _, err := s.addonPreflight(root)
	if err != nil {
		return nil, err
	}
	if opts.Mode.None() {
		return nil, nil
	}

	dir, err := s.inventory.Dir(ctx, root, kind)
	if err != nil {
		return nil, err
	}
	addons, err := s.inventory.ListInstalled(ctx, root, kind)
	if err != nil {
		return nil, err
	}
	session, err := s.whitelists.Open(ctx, root)
	if err != nil {
		return nil, err
	}
	matcher, err := ignore.Compile(ignore.Defaults(), opts.Ignore)
	if err != nil {
		return nil, err
	}

	var reports []*Report
	for _, installed := range addons {
		addon := webapp.Addon{Kind: kind, Slug: installed.Name, Version: installed.Version}
		if err := security.ValidateSegment(addon.Slug); err != nil {
			s.logger.Warnw("Skipping addon with unusable name", "name", addon.Slug, "error", err)
			continue
		}
		if addon.Version == "" {
			s.logger.Debugw("Skipping addon without version", "kind", kind, "name", addon.Slug)
			continue
		}

		refs, err := s.references.ResolveOrFetch(ctx, addon.ReferenceKey(), addon.Version, opts.FetchTimeout)
		if errors.Is(err, sharedErrors.ErrReferenceUnavailable) {
			s.logger.Infow("No published release to compare against", "kind", kind, "name", addon.Slug, "version", addon.Version)
			continue
		}
		if err != nil {
			return reports, fmt.Errorf("%s %s %s: %w", kind, addon.Slug, addon.Version, err)
		}

		addonRoot := filepath.Join(dir, addon.Slug)
		report := &Report{
			Target:      addonRoot,
			Application: addon.ReferenceKey(),
			Version:     addon.Version,
			Detected:    true,
		}
		if err := s.scanInto(ctx, report, addonRoot, refs, session, matcher, opts); err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// ListAddons returns the installed addons of kind for print-version output.
func (s *Service) ListAddons(ctx context.Context, root string, kind webapp.AddonKind) ([]inventory.Addon, error) {
	root, _, err := s.addonPreflight(root)
	if err != nil {
		return nil, err
	}
	return s.inventory.ListInstalled(ctx, root, kind)
}

// addonPreflight checks that root is a WordPress install recent enough for wp-cli.
func (s *Service) addonPreflight(root string) (string, string, error) {
	if s.inventory == nil {
		return "", "", errors.New("addon inventory is not configured")
	}
	root, err := security.Abs(root)
	if err != nil {
		return "", "", err
	}
	version, ok := webapp.WordPress{}.DetectVersion(root)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", sharedErrors.ErrNotWordPress, root)
	}
	if !webapp.AtLeast(version, constants.MinWPCLIVersion) {
		return "", "", fmt.Errorf("%w: need %s, %s has %s", sharedErrors.ErrAddonScanTooOld, constants.MinWPCLIVersion, root, version)
	}
	return root, version, nil
}

func (s *Service) scanInto(ctx context.Context, report *Report, root string, refs *integrity.ReferenceDigestSet, wl scanner.Whitelist, matcher *ignore.Matcher, opts Options) error {
	start := time.Now()
	result, err := s.engine.Scan(ctx, root, refs, wl, scanner.Options{
		Mode:                    opts.Mode,
		Promote:                 opts.Promote,
		RestrictToReferenceDirs: !opts.AllDirs,
		Matcher:                 matcher,
	})
	if err != nil {
		return err
	}

	report.Findings = result.Sorted()
	report.SkippedDirs = result.SkippedDirs
	report.Promoted = result.Promoted
	report.FilesChecked = result.FilesChecked

	s.logger.Infow("Scan complete",
		"target", root,
		"application", report.Application,
		"version", report.Version,
		"files", result.FilesChecked,
		"findings", len(report.Findings),
		"promoted", len(report.Promoted),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}
