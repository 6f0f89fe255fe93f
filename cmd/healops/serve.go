package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healops/config"
	"github.com/jonwraymond/healops/heal"
	"github.com/jonwraymond/healops/observe"
	"github.com/jonwraymond/healops/server"
)

func newServeCmd(loadOpts func() config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the health endpoints and the healing loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, loadOpts())
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
				defer cancel()
				_ = a.Close(shutdownCtx)
			}()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := a.inst.Logger

	if cfg.Startup.Enabled {
		gate, err := a.startupGate()
		if err != nil {
			return err
		}
		if !gate.AwaitReady(ctx, cfg.Startup.Required, cfg.Startup.MaxWait, cfg.Startup.PollInterval) {
			logger.Warn(ctx, "starting with unhealthy required dependencies",
				observe.F("required", cfg.Startup.Required))
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}

	restart := make(chan heal.EscalationRecord, 1)
	orch, err := heal.NewOrchestrator(a.registry, a.policy, heal.OrchestratorConfig{
		Interval:        cfg.Healing.Interval,
		Critical:        cfg.Healing.Critical,
		AutoRestart:     cfg.Healing.AutoRestart,
		Escalator:       restartEscalator(restart),
		Reporter:        a.reporter,
		HistoryCapacity: cfg.Healing.HistoryCapacity,
		Instruments:     a.inst,
	})
	if err != nil {
		return err
	}

	router, err := server.NewRouter(server.RouterConfig{
		Registry:      a.registry,
		Orchestrator:  orch,
		Authenticator: authenticator(cfg.Auth),
		Metrics:       metricsHandler(cfg.Observe),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	if cfg.Healing.Enabled {
		if err := orch.Start(ctx); err != nil {
			return err
		}
		defer orch.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg.Listen, router, logger).Run(gctx)
	})
	g.Go(func() error {
		select {
		case rec := <-restart:
			return &exitError{
				code: exitRestart,
				err:  fmt.Errorf("critical dependencies failed healing: %v", rec.Failed),
			}
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}

// restartEscalator hands escalations to the serve loop, which exits with
// exitRestart so a supervisor restarts the process.
func restartEscalator(restart chan<- heal.EscalationRecord) heal.Escalator {
	return heal.EscalatorFunc(func(ctx context.Context, rec heal.EscalationRecord) error {
		select {
		case restart <- rec:
		default:
		}
		return nil
	})
}

// metricsHandler exposes /metrics when the prometheus exporter is active.
func metricsHandler(cfg observe.Config) http.Handler {
	if !cfg.Metrics.Enabled || cfg.Metrics.Exporter != "prometheus" {
		return nil
	}
	return server.PrometheusHandler()
}
