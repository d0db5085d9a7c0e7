// Command scrobble-scrubber runs the scrobble-cleaning daemon against a
// Last.fm account: a thin cobra shell that builds the config, state store,
// clients and action providers, then hands off to internal/scrubber.
package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scrobble-scrubber:", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath          string
	stateFile           string
	lastfmUsername      string
	lastfmPassword      string
	dryRun              bool
	requireConfirmation bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "scrobble-scrubber",
		Short:         "Clean up Last.fm scrobble metadata automatically",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.toml (default: XDG config dir)")
	root.PersistentFlags().StringVar(&flags.stateFile, "state-file", "", "path to the state file (overrides config)")
	root.PersistentFlags().StringVar(&flags.lastfmUsername, "lastfm-username", "", "Last.fm username (overrides config/env)")
	root.PersistentFlags().StringVar(&flags.lastfmPassword, "lastfm-password", "", "Last.fm password (overrides config/env)")
	root.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "never mutate Last.fm, queue everything as pending instead")
	root.PersistentFlags().BoolVar(&flags.requireConfirmation, "require-confirmation", false, "require human approval for every suggested edit")

	root.AddCommand(
		newRunCmd(flags),
		newOnceCmd(flags),
		newLastNCmd(flags),
		newArtistCmd(flags),
	)
	return root
}

// newLogger builds the operator-facing logr.Logger backed by zap, the way
// jordigilh-kubernaut and prometheus-engine wire zapr over a production
// zap.Logger.
func newLogger() logr.Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	return zapr.NewLogger(zl)
}
