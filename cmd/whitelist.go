package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Inspect and prune accepted files",
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted install roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		appCtx := getAppContext(cmd)

		all, err := appCtx.Services.Whitelists.List(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(out, "No whitelisted files.")
			return nil
		}

		showEntries, _ := cmd.Flags().GetBool("entries")
		for _, wl := range all {
			fmt.Fprintf(out, "%s (%d files)\n", colorInfo(wl.Root()), wl.Len())
			if !showEntries {
				continue
			}
			entries := wl.Entries()
			for _, path := range wl.Paths() {
				fmt.Fprintf(out, "  %s %s\n", entries[path], path)
			}
		}
		return nil
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <substring>...",
	Short: "Remove every whitelisted file whose path contains a substring",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		appCtx := getAppContext(cmd)
		out := cmd.OutOrStdout()

		total := 0
		for _, substr := range args {
			removed, err := appCtx.Services.Whitelists.RemoveMatching(ctx, substr)
			for _, path := range removed {
				fmt.Fprintf(out, "Removed from whitelist %s\n", path)
			}
			total += len(removed)
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "%s %d entries removed\n", colorSuccess("Done:"), total)
		return nil
	},
}

func init() {
	whitelistListCmd.Flags().BoolP("entries", "e", false, "print each whitelisted file and its accepted digest")

	whitelistCmd.AddCommand(whitelistListCmd)
	whitelistCmd.AddCommand(whitelistRemoveCmd)
}
