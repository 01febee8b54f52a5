package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khanhnv2901/webapp-tripwire/internal/application"
	"github.com/khanhnv2901/webapp-tripwire/internal/infrastructure/fetch"
)

// AppContext carries what every command needs once the root has set up.
type AppContext struct {
	Logger   *zap.SugaredLogger
	DataDir  string
	Config   *CLIConfig
	Services *application.Container
}

var (
	cfgFile          string
	verbose          bool
	globalAppContext *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "tripwire",
	Short: "Detect unexpected and modified files in WordPress, Joomla and Drupal installs",
	Long: `tripwire compares a web application install against the checksums of the
matching vendor release and reports files that were added or changed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".tripwire")
			viper.SetConfigType("yaml")
		}
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}

		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialise logger: %w", err)
		}

		applyConfigDefaults(cmd)
		rules, err := loadIgnoreRules()
		if err != nil {
			return fmt.Errorf("invalid ignore rules in config: %w", err)
		}
		cliConfig.Ignore = rules

		dataDir, err := resolveDataDir(viper.GetString("data_dir"))
		if err != nil {
			return err
		}
		cliConfig.DataDir = dataDir

		services, err := application.NewContainer(dataDir, application.Config{
			Logger:       l,
			DisableFetch: cliConfig.Scan.NoFetch,
			WPCLI:        cliConfig.Scan.WPCLI,
			FetchOptions: []fetch.Option{fetch.WithUserAgent("tripwire/" + Version)},
		})
		if err != nil {
			return fmt.Errorf("failed to initialise services: %w", err)
		}

		storeAppContext(cmd, &AppContext{
			Logger:   l,
			DataDir:  dataDir,
			Config:   cliConfig,
			Services: services,
		})
		l.Debugw("Configuration loaded", "data_dir", dataDir, "config", viper.ConfigFileUsed())
		return nil
	},
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	// Findings go to stdout; only problems reach stderr unless asked.
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func storeAppContext(_ *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
}

func getAppContext(_ *cobra.Command) *AppContext {
	return globalAppContext
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tripwire.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log skipped files, unchanged files and whitelist updates")

	// add subcommands
	for _, adapter := range scanAdapters() {
		rootCmd.AddCommand(newScanCommand(adapter))
	}
	rootCmd.AddCommand(checksumsCmd)
	rootCmd.AddCommand(whitelistCmd)
	rootCmd.AddCommand(versionCmd)
}
