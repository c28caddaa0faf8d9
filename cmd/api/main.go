package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/roundsiq/internal/bootstrap"
	"github.com/bryanwahyu/roundsiq/internal/config"
	"github.com/bryanwahyu/roundsiq/internal/infra/httpserver"
	"github.com/bryanwahyu/roundsiq/internal/logging"
	"github.com/bryanwahyu/roundsiq/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.PerMinute)
	handler := httpserver.NewRouter(httpserver.Deps{
		Analyses:   app.Orchestrator,
		Reanalyzer: app.Reanalyzer,
		Cases:      app.Cases,
		Results:    app.Results,
		JobErrors:  app.JobErrors,
		Metrics:    app.Metrics,
		Limiter:    limiter,
		Clinicians: bootstrap.Clinicians(cfg),
		Health: map[string]middleware.HealthChecker{
			"database":         &middleware.DatabaseHealthChecker{DB: app.DB},
			"analysis_service": &middleware.ServiceHealthChecker{BaseURL: cfg.AnalysisService.BaseURL},
		},
		Ready:   app.Orchestrator.Accepting,
		Tracked: app.Orchestrator.Tracker().Len,
		CORS:    cfg.Server.CORSOrigins,
		Logger:  log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		// reanalysis blocks for up to the reanalysis timeout
		WriteTimeout: cfg.Reanalysis.Timeout.Std() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", addr, "database", cfg.Database.Driver, "reanalysis_backend", cfg.Reanalysis.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.Cleanup(gctx)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Tracker.PruneInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := app.Orchestrator.Tracker().Prune(time.Now().Add(-cfg.Tracker.Retention.Std())); n > 0 {
					log.Debug("pruned finished jobs", "count", n)
				}
			}
		}
	})

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		if err := app.Orchestrator.Shutdown(sctx); err != nil {
			log.Warn("polling loops did not stop in time", "error", err)
		}
		return nil
	})

	return g.Wait()
}
