package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TOBY0001/encrypted-wheel/api"
	"github.com/TOBY0001/encrypted-wheel/app"
	"github.com/TOBY0001/encrypted-wheel/app/health"
	"github.com/TOBY0001/encrypted-wheel/app/telemetry"
)

const flagProcessInterval = "process-interval"

// ServeCmd returns a command that serves the query API and, when
// --process-interval is set, settles pending computations on a timer.
func ServeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API, health checks and metrics",
		Long: `Serve opens the node state and serves the REST query API under /api/v1,
health checks under /health and Prometheus metrics under /metrics.

The state database is held open while serving; other wheeld commands on the
same home fail to open it until serve exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, _ := cmd.Flags().GetDuration(flagProcessInterval)

			provider, err := telemetry.NewProvider(e.cfg.Telemetry)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := provider.Shutdown(shutdownCtx); err != nil {
					e.logger.Error("telemetry shutdown", "error", err)
				}
			}()

			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			instruments, err := app.NewInstruments(provider.Meter())
			if err != nil {
				return err
			}
			a.SetInstruments(instruments)

			checker := health.NewChecker(e.logger, e.cfg.Health, a)
			server := api.NewServer(e.logger, a, checker, e.cfg.API)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.Start(ctx) })
			if interval > 0 {
				g.Go(func() error { return e.processLoop(ctx, a, interval) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().Duration(flagProcessInterval, 0, "settle pending computations at this interval (0 disables)")
	return cmd
}

// processLoop commits one block of settled computations per tick while
// work is pending.
func (e *env) processLoop(ctx context.Context, a *app.App, interval time.Duration) error {
	cluster, err := e.loadCluster(a)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		results, err := processPending(a, cluster)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			e.logger.Info("processed computations", "count", len(results), "height", a.LastBlockHeight())
		}
	}
}
