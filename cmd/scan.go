package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/webapp-tripwire/internal/application/tripwire"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/security"
	"github.com/khanhnv2901/webapp-tripwire/internal/webapp"
)

var displayNames = map[string]string{
	"wordpress": "WordPress",
	"joomla":    "Joomla",
	"drupal":    "Drupal",
}

func scanAdapters() []webapp.Adapter {
	var adapters []webapp.Adapter
	for _, name := range webapp.Names() {
		adapter, err := webapp.Lookup(name)
		if err != nil {
			continue
		}
		adapters = append(adapters, adapter)
	}
	return adapters
}

func displayName(adapter webapp.Adapter) string {
	if name, ok := displayNames[adapter.Name()]; ok {
		return name
	}
	return adapter.Name()
}

// newScanCommand builds the scan command of one application.
func newScanCommand(adapter webapp.Adapter) *cobra.Command {
	name := displayName(adapter)
	c := &cobra.Command{
		Use:   adapter.Name() + " [flags] path...",
		Short: fmt.Sprintf("Scan %s installs for unexpected and modified files", name),
		Example: fmt.Sprintf(`  tripwire %[1]s -n -c /var/www/example.com
  tripwire %[1]s -w -n -c /var/www/example.com
  tripwire %[1]s -u /var/www/example.com/uploads
  tripwire %[1]s -n -c -f sites.txt --concurrency 4`, adapter.Name()),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, adapter, args)
		},
	}

	conf := &cliConfig.Scan
	flags := c.Flags()
	flags.BoolVarP(&conf.NewFiles, "new-files", "n", false, "report files added to application core directories")
	flags.BoolVarP(&conf.ChangedFiles, "changed-files", "c", false, "report modified application core files")
	flags.BoolVarP(&conf.Whitelist, "whitelist-files", "w", false, "add the files reported by this scan to the whitelist")
	flags.BoolVarP(&conf.Unwhitelist, "unwhitelist-files", "u", false, "remove whitelist entries on the given paths")
	flags.BoolVarP(&conf.PrintVersion, "print-version", "V", false, fmt.Sprintf("print the %s version, if found", name))
	flags.StringVarP(&conf.FromFile, "from-file", "f", "", "read target paths from a file, one per line")
	flags.BoolVar(&conf.AllDirs, "all-dirs", false, "check every directory, not only those holding reference files")
	flags.IntVar(&conf.Concurrency, "concurrency", defaultConcurrency, "maximum number of targets scanned at once")
	flags.IntVar(&conf.RateLimit, "rate-limit", 0, "targets started per second (0 = unlimited)")
	flags.IntVar(&conf.FetchTimeoutSecs, "fetch-timeout", cliConfig.Defaults.FetchTimeoutSecs, "seconds to wait for a missing reference download (0 = no limit)")
	flags.BoolVar(&conf.NoFetch, "no-fetch", false, "use stored checksums only, never download a release")
	flags.BoolVar(&conf.ProgressEnabled, "progress", false, "show batch progress on stderr")

	if _, ok := adapter.(webapp.WordPress); ok {
		flags.BoolVarP(&conf.ScanPlugins, "scan-plugins", "p", false, "scan installed plugins through wp-cli")
		flags.BoolVarP(&conf.ScanThemes, "scan-themes", "t", false, "scan installed themes through wp-cli")
		flags.StringVar(&conf.WPCLI, "wp-cli", defaultWPCLI, "wp-cli binary used for plugin and theme inventories")
	}
	return c
}

func runScan(cmd *cobra.Command, adapter webapp.Adapter, args []string) error {
	appCtx := getAppContext(cmd)
	conf := appCtx.Config.Scan

	if conf.Whitelist && conf.Unwhitelist {
		_ = cmd.Usage()
		return sharedErrors.ErrConflictingFlags
	}
	targets, err := collectTargets(args, conf.FromFile)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		_ = cmd.Usage()
		return sharedErrors.ErrNoTargets
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%s Received %s, stopping scans...\n", colorWarn("!"), sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if conf.Unwhitelist {
		return runUnwhitelist(ctx, cmd, appCtx, targets)
	}

	job := &scanJob{
		adapter: adapter,
		service: appCtx.Services.Tripwire,
		conf:    conf,
		opts:    conf.Options(appCtx.Config.Ignore),
		notes:   make(map[string][]string),
	}

	var progress *progressPrinter
	if conf.ProgressEnabled {
		progress = newProgressPrinter(cmd.ErrOrStderr(), len(targets), adapter.Name())
		progress.Start()
	}

	runner := &tripwire.Runner{Concurrency: conf.Concurrency, RateLimit: conf.RateLimit}
	results := runner.Run(ctx, targets, job.scan, func(result tripwire.TargetResult) {
		if progress != nil {
			progress.Increment(result.Err == nil, countFindings(result.Reports), result.Duration.Seconds())
		}
	})
	if progress != nil {
		progress.Stop()
	}

	out := cmd.OutOrStdout()
	for _, result := range results {
		job.print(out, cmd.ErrOrStderr(), result)
	}
	appCtx.Logger.Debugw("Batch complete", "application", adapter.Name(), "targets", len(targets))
	return nil
}

func runUnwhitelist(ctx context.Context, cmd *cobra.Command, appCtx *AppContext, targets []string) error {
	for _, target := range targets {
		abs, err := security.Abs(target)
		if err != nil {
			printTargetError(cmd.ErrOrStderr(), &TargetError{Target: target, Err: err})
			continue
		}
		removed, err := appCtx.Services.Whitelists.RemoveMatching(ctx, abs)
		if err != nil {
			printTargetError(cmd.ErrOrStderr(), &TargetError{Target: abs, Err: err})
			continue
		}
		appCtx.Logger.Debugw("Whitelist updated", "target", abs, "removed", len(removed))
	}
	return nil
}

// scanJob scans the targets of one batch. Notes are lines printed ahead of
// a target's findings.
type scanJob struct {
	adapter webapp.Adapter
	service *tripwire.Service
	conf    ScanRuntimeConfig
	opts    tripwire.Options

	mu    sync.Mutex
	notes map[string][]string
}

func (j *scanJob) note(target, format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.notes[target] = append(j.notes[target], fmt.Sprintf(format, args...))
}

func (j *scanJob) scan(ctx context.Context, target string) ([]*tripwire.Report, error) {
	root, err := security.Abs(target)
	if err != nil {
		return nil, err
	}
	version, detected := j.service.DetectVersion(j.adapter, root)
	if !detected {
		return nil, nil
	}

	addonKinds := j.addonKinds()
	if len(addonKinds) > 0 && !webapp.AtLeast(version, constants.MinWPCLIVersion) {
		j.note(target, "wp-cli plugin and theme scans require %s version %s - you have %s",
			displayName(j.adapter), constants.MinWPCLIVersion, version)
		addonKinds = nil
	}

	if j.conf.PrintVersion {
		j.note(target, "%s looks like %s version %s", root, j.adapter.ReferenceKey(), version)
		for _, kind := range addonKinds {
			addons, err := j.service.ListAddons(ctx, root, kind)
			if err != nil {
				return nil, fmt.Errorf("listing %ss: %w", kind, err)
			}
			j.note(target, "%ss:", titleCase(string(kind)))
			for _, addon := range addons {
				j.note(target, "%s:\t%s", addon.Name, addon.Version)
			}
		}
	}

	var reports []*tripwire.Report
	for _, kind := range addonKinds {
		addonReports, err := j.service.ScanAddons(ctx, root, kind, j.opts)
		reports = append(reports, addonReports...)
		if err != nil {
			return reports, err
		}
	}

	core, err := j.service.ScanCore(ctx, j.adapter, root, j.opts)
	if err != nil {
		return reports, err
	}
	return append(reports, core), nil
}

func (j *scanJob) addonKinds() []webapp.AddonKind {
	var kinds []webapp.AddonKind
	if j.conf.ScanPlugins {
		kinds = append(kinds, webapp.AddonPlugin)
	}
	if j.conf.ScanThemes {
		kinds = append(kinds, webapp.AddonTheme)
	}
	return kinds
}

func (j *scanJob) print(out, errOut io.Writer, result tripwire.TargetResult) {
	j.mu.Lock()
	notes := j.notes[result.Target]
	j.mu.Unlock()

	for _, line := range notes {
		fmt.Fprintln(out, line)
	}
	for _, report := range result.Reports {
		for _, dir := range report.SkippedDirs {
			fmt.Fprintf(errOut, "%s cannot list directory %s\n", colorWarn("!"), dir)
		}
		for _, finding := range report.Findings {
			fmt.Fprintf(out, "%s %s\n", formatReasonWithColor(finding.Reason), finding.Path)
		}
	}
	if result.Err != nil {
		printTargetError(errOut, &TargetError{Target: result.Target, Err: result.Err})
	}
}

func printTargetError(w io.Writer, err *TargetError) {
	msg := err.Error()
	switch {
	case errors.Is(err, sharedErrors.ErrFetchTimeout):
		msg += " (raise --fetch-timeout or run 'tripwire checksums fetch' first)"
	case errors.Is(err, sharedErrors.ErrReferenceUnavailable):
		msg += " (run 'tripwire checksums fetch' or drop --no-fetch)"
	}
	fmt.Fprintf(w, "%s %s\n", colorError("Error:"), msg)
}

func countFindings(reports []*tripwire.Report) int {
	n := 0
	for _, r := range reports {
		n += len(r.Findings)
	}
	return n
}

// collectTargets merges positional paths with those listed in fromFile and
// returns them as sorted absolute paths. Blanks are dropped and spellings
// of one install root collapse into a single target.
func collectTargets(args []string, fromFile string) ([]string, error) {
	paths := append([]string(nil), args...)
	if fromFile != "" {
		listed, err := readTargetFile(fromFile)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}

	seen := make(map[string]struct{}, len(paths))
	targets := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := security.Abs(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		targets = append(targets, abs)
	}
	sort.Strings(targets)
	return targets, nil
}

func readTargetFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open path list: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read path list: %w", err)
	}
	return lines, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
