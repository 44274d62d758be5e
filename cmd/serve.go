package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/itcsync/internal/config"
	"github.com/bnema/itcsync/internal/daemon"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/spf13/cobra"
)

func newServeCmd(app *app) *cobra.Command {
	var addr string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop, download workers and status endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = app.cfg.GetString(config.KeyMetricsAddr)
			}
			if interval <= 0 {
				interval = config.SyncSettings(app.cfg).Interval
			}
			return runServe(cmd.Context(), app, addr, interval)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for /healthz, /metrics and project status (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between sync passes (default from config)")

	return cmd
}

func runServe(ctx context.Context, app *app, addr string, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := app.workerPool()
	syncService := app.syncService(pool)

	server := &http.Server{
		Addr: addr,
		Handler: daemon.NewRouter(daemon.RouterDeps{
			Status:  app.config,
			Sync:    syncService,
			Metrics: app.metrics.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := daemon.NewTree(daemon.DefaultTreeConfig())
	tree.AddWorkService(pool)
	tree.AddWorkService(daemon.NewScheduler(syncService, interval))
	tree.AddAPIService(daemon.NewHTTPService(server, 0))

	logging.Info().
		Str("addr", addr).
		Dur("interval", interval).
		Msg("itcsync daemon starting")

	err := tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon stopped: %w", err)
	}

	logging.Info().Msg("itcsync daemon stopped")
	return nil
}
