package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/webapp-tripwire/internal/webapp"
)

var checksumsCmd = &cobra.Command{
	Use:   "checksums",
	Short: "Manage stored reference checksums",
}

var checksumsFetchCmd = &cobra.Command{
	Use:   "fetch <application> <version>...",
	Short: "Download vendor releases and store their checksums",
	Long: `Download the given releases and store their checksums so later scans do not
wait for a download. <application> is wordpress, joomla, drupal or a reference
key such as wordpress-plugin-akismet.`,
	Example: `  tripwire checksums fetch wordpress 6.4.2 6.5
  tripwire checksums fetch wordpress-plugin-akismet 5.3`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		appCtx := getAppContext(cmd)
		store := appCtx.Services.References

		key := referenceKey(args[0])
		force, _ := cmd.Flags().GetBool("force")
		timeout := time.Duration(appCtx.Config.Scan.FetchTimeoutSecs) * time.Second

		var failed int
		for _, version := range args[1:] {
			var err error
			if force {
				err = store.InvalidateAndRefetch(ctx, key, version)
			} else {
				_, err = store.ResolveOrFetch(ctx, key, version, timeout)
			}
			if err != nil {
				failed++
				printTargetError(cmd.ErrOrStderr(), &TargetError{Target: key + " " + version, Err: err})
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", colorSuccess("Stored"), key, version)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d releases could not be stored", failed, len(args)-1)
		}
		return nil
	},
}

var checksumsListCmd = &cobra.Command{
	Use:   "list [application]",
	Short: "List stored reference checksums",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		appCtx := getAppContext(cmd)
		repo := appCtx.Services.ChecksumRepo
		store := appCtx.Services.References

		var keys []string
		if len(args) == 1 {
			keys = []string{referenceKey(args[0])}
		} else {
			all, err := repo.Applications(ctx)
			if err != nil {
				return fmt.Errorf("failed to list checksums: %w", err)
			}
			keys = all
		}

		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, "No checksums stored.")
			return nil
		}
		for _, key := range keys {
			versions, err := store.Versions(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to list versions of %s: %w", key, err)
			}
			fmt.Fprintf(out, "%s: %s\n", colorInfo(key), strings.Join(versions, " "))
		}
		return nil
	},
}

// referenceKey maps an application name to its reference key and passes
// anything else through.
func referenceKey(name string) string {
	adapter, err := webapp.Lookup(name)
	if err != nil {
		return name
	}
	return adapter.ReferenceKey()
}

func init() {
	checksumsFetchCmd.Flags().Bool("force", false, "download again even when the release is stored")
	checksumsFetchCmd.Flags().IntVar(&cliConfig.Scan.FetchTimeoutSecs, "fetch-timeout", cliConfig.Defaults.FetchTimeoutSecs, "seconds to wait for each download (0 = no limit)")

	checksumsCmd.AddCommand(checksumsFetchCmd)
	checksumsCmd.AddCommand(checksumsListCmd)
}
