package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deusflow/newsdigest/internal/app"
	"github.com/deusflow/newsdigest/internal/clickstats"
	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/evaluator"
	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/metrics"
	"github.com/deusflow/newsdigest/internal/rss"
	"github.com/deusflow/newsdigest/internal/storage"
	"github.com/deusflow/newsdigest/internal/telegram"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "newsdigest",
	Short: "Curated engineering news digest",
	Long: `newsdigest fetches curated feeds, removes duplicates, has an LLM assess each
article and writes the day's highlights with a per-run analysis report.

Configuration is read from the environment.

Example usage:
  newsdigest run               # One digest run
  newsdigest serve             # Scheduled runs plus /health and /metrics
  newsdigest click --source hn --type ai_tooling`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger.Init(cfg.App.LogLevel, cfg.App.LogFormat)
		return nil
	},
}

// deps owns everything a run needs and closes it in reverse order.
type deps struct {
	runner  *app.Runner
	alerter telegram.Alerter
	closers []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

func bootstrap(ctx context.Context) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	sources, err := rss.LoadSources(cfg.App.SourcesPath)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("no enabled sources in " + cfg.App.SourcesPath)
	}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d.closers = append(d.closers, store.Close)

	types, err := evaluator.LoadArticleTypes(cfg.Evaluator.ArticleTypesPath)
	if err != nil {
		return nil, err
	}
	backend, err := evaluator.NewBackend(ctx, cfg.Evaluator)
	if err != nil {
		return nil, fmt.Errorf("evaluator backend: %w", err)
	}
	ev := evaluator.New(cfg.Evaluator, backend, store, types)
	d.closers = append(d.closers, ev.Close)

	clicks, err := clickstats.New(cfg.ClickStats)
	if err != nil {
		return nil, err
	}
	if c, ok := clicks.(interface{ Close() error }); ok {
		d.closers = append(d.closers, c.Close)
	}

	d.alerter, err = telegram.New(cfg.Alert)
	if err != nil {
		logger.Warn("telegram alerts disabled", "error", err)
		d.alerter = telegram.Noop{}
	}

	d.runner = app.NewRunner(cfg, sources, store, clicks, rss.NewFetcher(cfg.Fetch), ev, d.alerter)
	logger.Info("bootstrap complete",
		"sources", len(sources),
		"store", cfg.Store.Driver,
		"provider", cfg.Evaluator.Provider,
		"model", backend.Model(),
		"clickstats", cfg.ClickStats.Backend)
	return d, nil
}

// runOnce performs one bounded run and reports failures to the status and the alerter.
func runOnce(ctx context.Context, d *deps) (app.Result, error) {
	if cfg.App.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.App.RunTimeout)
		defer cancel()
	}

	res, err := d.runner.Run(ctx)
	if err != nil {
		metrics.Global.SetError(err.Error())
		if alertErr := d.alerter.Alert(context.WithoutCancel(ctx), "Digest run failed", err.Error()); alertErr != nil {
			logger.Warn("failure alert not delivered", "error", alertErr)
		}
		return res, err
	}
	return res, nil
}
