package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linkedin-harvester/internal/config"
	"linkedin-harvester/internal/harvest"
	"linkedin-harvester/internal/logging"
)

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config

	// open starts browser sessions; nil means browser.Open.
	open harvest.Opener
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "harvester",
		Short:         "harvester searches LinkedIn for a list of names and saves the matching profiles to CSV.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(a.logLevel); err != nil {
				return err
			}
			config.LoadEnv()
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file with site locators, schema and browser settings.")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")

	root.AddCommand(
		newCrawlCmd(a),
		newStoreCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func ExecuteContext(ctx context.Context) {
	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
