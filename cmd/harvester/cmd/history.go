package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"linkedin-harvester/internal/config"
	"linkedin-harvester/internal/history"
	"linkedin-harvester/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		dsn   string
		limit int
	)
	c := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Lists recent crawl runs, or the per-name results of one run.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = a.cfg.History.DSN
			}
			if dsn == "" {
				return errors.New("no history store configured, use --history or " + config.EnvHistory)
			}
			store, err := history.Open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				outcomes, err := store.Outcomes(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				report.Outcomes(cmd.OutOrStdout(), outcomes)
				return nil
			}
			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			report.Runs(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	c.Flags().StringVar(&dsn, "history", "", "History store (sqlite path or mongodb:// URI). Defaults to the config.")
	c.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list.")
	return c
}
