package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/metrics"
	"github.com/deusflow/newsdigest/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run digests on SCHEDULE",
	Long: `Run digests on the SCHEDULE cron spec in TIMEZONE until interrupted.
When ENABLE_HTTP_MONITORING is set, /health and /metrics are served on
MONITORING_PORT.

Examples:
  newsdigest serve
  newsdigest serve --now       # Also run once at startup`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("now", false, "run once immediately")
}

func serve(cmd *cobra.Command, args []string) error {
	runNow, _ := cmd.Flags().GetBool("now")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	job := func(ctx context.Context) {
		if _, err := runOnce(ctx, d); err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	}
	sched, err := scheduler.New(cfg.App.Schedule, cfg.App.Timezone, job)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.App.EnableMonitoring {
		srv = monitoringServer(":" + cfg.App.MonitoringPort)
		go func() {
			logger.Info("monitoring server started", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("monitoring server error", "error", err)
			}
		}()
	}

	if runNow {
		job(ctx)
	}
	sched.Start()
	logger.Info("waiting for schedule", "spec", cfg.App.Schedule, "timezone", cfg.App.Timezone, "next_run", sched.Next())

	<-ctx.Done()
	logger.Info("shutting down")
	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

func monitoringServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	code := http.StatusOK
	if !metrics.Global.Healthy() {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       status,
		"last_run":     stats["last_run_time"],
		"last_outcome": stats["last_outcome"],
		"last_error":   stats["last_error"],
	})
}
