package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"linkedin-harvester/internal/credentials"
	"linkedin-harvester/internal/harvest"
	"linkedin-harvester/internal/history"
	"linkedin-harvester/internal/report"
	"linkedin-harvester/internal/schema"
)

type crawlFlags struct {
	backend  string
	schema   string
	headless bool
	dumpDir  string
	bom      bool
	history  string
}

func newCrawlCmd(a *app) *cobra.Command {
	var f crawlFlags
	c := &cobra.Command{
		Use:   "crawl [flags] USERNAME INFILE OUTFILE",
		Short: "Logs in as USERNAME, searches every name in INFILE and writes the profiles found to OUTFILE.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.crawl(cmd, f, args[0], args[1], args[2])
		},
	}
	flags := c.Flags()
	flags.StringVarP(&f.backend, "browser", "b", "", "Browser backend: chrome, chromium, firefox, phantomjs, remote or http. Defaults to the config.")
	flags.StringVar(&f.schema, "schema", "", "Schema preset to extract: full or basic. Defaults to the config.")
	flags.BoolVar(&f.headless, "headless", true, "Run the browser without a window.")
	flags.StringVar(&f.dumpDir, "dump-dir", "", "Save the HTML of profile pages that could not be read to this directory.")
	flags.BoolVar(&f.bom, "bom", false, "Start the CSV with a UTF-8 byte order mark.")
	flags.StringVar(&f.history, "history", "", "Record the run in this history store (sqlite path or mongodb:// URI).")
	return c
}

func (a *app) crawl(cmd *cobra.Command, f crawlFlags, username, infile, outfile string) error {
	cfg := a.cfg
	backend := cfg.Browser.Backend
	if f.backend != "" {
		backend = f.backend
	}
	s, err := cfg.ResolveSchema()
	if f.schema != "" {
		s, err = schema.Preset(f.schema)
	}
	if err != nil {
		return err
	}
	opts := cfg.BrowserOptions()
	if cmd.Flags().Changed("headless") {
		opts.Headless = f.headless
	}
	dsn := cfg.History.DSN
	if f.history != "" {
		dsn = f.history
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	h := &harvest.Harvester{
		Crawler: harvest.Crawler{
			Site:        cfg.Site,
			Credentials: credentials.NewKeyring(cfg.Keyring.Service),
			DumpDir:     f.dumpDir,
			RunID:       runID,
		},
		Backend: backend,
		Browser: opts,
		BOM:     f.bom || cfg.Output.BOM,
		Open:    a.open,
	}

	store := openHistory(ctx, dsn)
	if store != nil {
		defer store.Close()
		rec := &recorder{store: store, runID: runID}
		rec.start(ctx, history.Run{
			ID:        runID,
			Backend:   backend,
			Username:  username,
			Infile:    infile,
			Outfile:   outfile,
			StartedAt: time.Now(),
		})
		h.Crawler.OnResult = func(res harvest.QueryResult) { rec.observe(ctx, res) }
		defer func() { rec.finish(ctx, err) }()
	}

	slog.Info("starting crawl", "run", runID, "backend", backend, "username", username, "infile", infile, "outfile", outfile)
	sum, err := h.Crawl(ctx, username, infile, outfile, s)
	if len(sum.Results) > 0 || err == nil {
		report.Summary(cmd.OutOrStdout(), sum)
	}
	switch {
	case errors.Is(err, credentials.ErrNoStoredCredential):
		err = fmt.Errorf("%w (run: harvester store %s)", err, username)
	case err != nil && ctx.Err() != nil:
		slog.Warn("crawl interrupted, results so far are saved", "outfile", outfile)
	case err == nil:
		slog.Info("crawl finished", "records", sum.Records, "skipped_names", sum.SkippedNames(), "outfile", outfile)
	}
	return err
}

func openHistory(ctx context.Context, dsn string) history.Store {
	if dsn == "" {
		return nil
	}
	store, err := history.Open(ctx, dsn)
	if err != nil {
		slog.Warn("history disabled for this run", "err", err)
		return nil
	}
	return store
}

// recorder writes the run ledger. Its failures are logged and never stop
// the crawl.
type recorder struct {
	store history.Store
	runID string
}

func (r *recorder) start(ctx context.Context, run history.Run) {
	if err := r.store.StartRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("recording run start", "run", r.runID, "err", err)
	}
}

func (r *recorder) observe(ctx context.Context, res harvest.QueryResult) {
	if err := r.store.RecordOutcome(context.WithoutCancel(ctx), outcomeFor(r.runID, res)); err != nil {
		slog.Warn("recording name outcome", "run", r.runID, "query", res.Query, "err", err)
	}
}

func (r *recorder) finish(ctx context.Context, crawlErr error) {
	status, msg := history.StatusDone, ""
	switch {
	case crawlErr != nil && ctx.Err() != nil:
		status, msg = history.StatusInterrupted, crawlErr.Error()
	case crawlErr != nil:
		status, msg = history.StatusFailed, crawlErr.Error()
	}
	if err := r.store.FinishRun(context.WithoutCancel(ctx), r.runID, status, time.Now(), msg); err != nil {
		slog.Warn("recording run end", "run", r.runID, "err", err)
	}
}

func outcomeFor(runID string, res harvest.QueryResult) history.Outcome {
	o := history.Outcome{
		RunID:      runID,
		Query:      res.Query,
		Status:     history.OutcomeSuccess,
		Links:      res.Links,
		Records:    res.Records,
		Message:    res.Note,
		RecordedAt: time.Now(),
	}
	switch {
	case res.Err != nil:
		o.Status, o.Message = history.OutcomeError, res.Err.Error()
	case res.Skipped:
		o.Status = history.OutcomeSkipped
	}
	return o
}
