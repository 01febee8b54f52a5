package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/webapp-tripwire/internal/application/tripwire"
	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	"github.com/khanhnv2901/webapp-tripwire/internal/ignore"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
)

const (
	defaultConcurrency = 1
	defaultWPCLI       = "wp"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	DataDir  string
	Defaults DefaultValues
	Scan     ScanRuntimeConfig
	Ignore   ignore.Rules
}

// DefaultValues represent operator-level defaults, typically derived from the config file.
type DefaultValues struct {
	Concurrency      int
	RateLimit        int
	FetchTimeoutSecs int
	AllDirs          bool
	WPCLI            string
}

// ScanRuntimeConfig consolidates flag-driven settings for scan commands.
type ScanRuntimeConfig struct {
	NewFiles         bool
	ChangedFiles     bool
	Whitelist        bool
	Unwhitelist      bool
	PrintVersion     bool
	ScanPlugins      bool
	ScanThemes       bool
	FromFile         string
	AllDirs          bool
	Concurrency      int
	RateLimit        int
	FetchTimeoutSecs int
	NoFetch          bool
	ProgressEnabled  bool
	WPCLI            string
}

type defaultOverrides struct {
	Concurrency      *int
	RateLimit        *int
	FetchTimeoutSecs *int
	AllDirs          *bool
	WPCLI            string
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	fetchTimeout := int(constants.DefaultFetchTimeout / time.Second)
	return &CLIConfig{
		Defaults: DefaultValues{
			Concurrency:      defaultConcurrency,
			RateLimit:        0,
			FetchTimeoutSecs: fetchTimeout,
			WPCLI:            defaultWPCLI,
		},
		Scan: ScanRuntimeConfig{
			Concurrency:      defaultConcurrency,
			FetchTimeoutSecs: fetchTimeout,
			WPCLI:            defaultWPCLI,
		},
	}
}

// Options turns the scan flags into per-invocation tripwire options.
func (c ScanRuntimeConfig) Options(rules ignore.Rules) tripwire.Options {
	return tripwire.Options{
		Mode:         integrity.ModeFrom(c.NewFiles, c.ChangedFiles),
		Promote:      c.Whitelist,
		AllDirs:      c.AllDirs,
		FetchTimeout: time.Duration(c.FetchTimeoutSecs) * time.Second,
		Ignore:       rules,
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.concurrency") {
		val := viper.GetInt("defaults.concurrency")
		overrides.Concurrency = &val
	}

	if viper.IsSet("defaults.rate_limit") {
		val := viper.GetInt("defaults.rate_limit")
		overrides.RateLimit = &val
	}

	if viper.IsSet("defaults.fetch_timeout_secs") {
		val := viper.GetInt("defaults.fetch_timeout_secs")
		overrides.FetchTimeoutSecs = &val
	}

	if viper.IsSet("defaults.all_dirs") {
		val := viper.GetBool("defaults.all_dirs")
		overrides.AllDirs = &val
	}

	if viper.IsSet("defaults.wp_cli") {
		overrides.WPCLI = viper.GetString("defaults.wp_cli")
	}

	return overrides
}

// loadIgnoreRules reads the extra ignore rules of the config file.
func loadIgnoreRules() (ignore.Rules, error) {
	var rules ignore.Rules
	if !viper.IsSet("ignore") {
		return rules, nil
	}
	if err := viper.UnmarshalKey("ignore", &rules); err != nil {
		return ignore.Rules{}, err
	}
	// Reject bad patterns before any target is scanned.
	if _, err := ignore.Compile(rules); err != nil {
		return ignore.Rules{}, err
	}
	return rules, nil
}

// applyConfigDefaults merges config file defaults into the runtime config when the user
// did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	flags := cmd.Flags()

	if overrides.Concurrency != nil {
		applyIntDefault(flags, "concurrency", *overrides.Concurrency, func(v int) {
			cliConfig.Defaults.Concurrency = v
			cliConfig.Scan.Concurrency = v
		})
	}

	if overrides.RateLimit != nil {
		applyIntDefault(flags, "rate-limit", *overrides.RateLimit, func(v int) {
			cliConfig.Defaults.RateLimit = v
			cliConfig.Scan.RateLimit = v
		})
	}

	if overrides.FetchTimeoutSecs != nil {
		applyIntDefault(flags, "fetch-timeout", *overrides.FetchTimeoutSecs, func(v int) {
			cliConfig.Defaults.FetchTimeoutSecs = v
			cliConfig.Scan.FetchTimeoutSecs = v
		})
	}

	if overrides.AllDirs != nil {
		applyBoolDefault(flags, "all-dirs", *overrides.AllDirs, func(v bool) {
			cliConfig.Defaults.AllDirs = v
			cliConfig.Scan.AllDirs = v
		})
	}

	if overrides.WPCLI != "" {
		applyStringDefault(flags, "wp-cli", overrides.WPCLI, func(v string) {
			cliConfig.Defaults.WPCLI = v
			cliConfig.Scan.WPCLI = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
