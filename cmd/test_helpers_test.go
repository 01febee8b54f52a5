package cmd

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/webapp-tripwire/cmd/testutil"
)

// executeCommand runs the root command against env's data directory and
// returns what it printed.
func executeCommand(t *testing.T, env *testutil.TestEnv, args ...string) (string, string, error) {
	t.Helper()

	t.Setenv(dataDirEnvVar, env.DataDir)
	t.Setenv("HOME", env.TmpDir)
	resetCommandState()

	originalNoColor := color.NoColor
	originalCtx := globalAppContext
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = originalNoColor
		globalAppContext = originalCtx
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetCommandState undoes what an earlier execution left in package state.
func resetCommandState() {
	cfgFile = ""
	verbose = false
	viper.Reset()
	*cliConfig = *newCLIConfig()
	resetFlags(rootCmd)
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// newWordPressEnv returns a WordPress 6.4.2 install whose index.php differs
// from the stored release and which carries one extra file.
func newWordPressEnv(t *testing.T) *testutil.TestEnv {
	t.Helper()
	env := testutil.NewTestEnv(t).WithWordPress("6.4.2")
	env.SiteFile("index.php", "<?php // tampered")
	env.SiteFile("shell.php", "<?php eval($_POST['x']);")
	env.SiteFile("wp-config.php", "<?php define('DB_NAME', 'wp');")
	env.StoreChecksums("wordpress-core", "6.4.2", map[string]string{
		"index.php":               "<?php // front",
		"wp-includes/version.php": testutil.WordPressVersionFile("6.4.2"),
	})
	return env
}
