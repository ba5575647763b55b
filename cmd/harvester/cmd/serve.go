package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"linkedin-harvester/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr   string
		outDir string
	)
	c := &cobra.Command{
		Use:   "serve [--addr :8080] [--out-dir data]",
		Short: "Serves a web console that starts crawls and streams their logs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := web.NewExecRunner()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = a.cfg.Output.Dir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &web.Server{
				OutDir:         outDir,
				ConfigPath:     a.configPath,
				DefaultBackend: a.cfg.Browser.Backend,
				Runner:         runner,
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	c.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on.")
	c.Flags().StringVar(&outDir, "out-dir", "", "Directory for result files. Defaults to the config.")
	return c
}
