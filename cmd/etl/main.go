package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/immo-climat/internal/adapter/http"
	"github.com/couchcryptid/immo-climat/internal/app"
	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/config"
	"github.com/couchcryptid/immo-climat/internal/observability"
	"github.com/couchcryptid/immo-climat/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "etl")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := app.OpenSinks(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}

	geocoder := app.NewGeocoder(cfg, metrics, logger)
	climate, err := app.NewClimateJob(cfg, sinks.ClimateSinks(), geocoder,
		[]cluster.Preset{cluster.PresetDefault, cluster.PresetOptimal}, metrics, logger)
	if err != nil {
		logger.Error("failed to build climate job", "error", err)
		os.Exit(1)
	}
	realEstate := app.NewRealEstateJob(cfg, sinks.RealEstateSinks(), metrics, logger)

	p := pipeline.New([]pipeline.Job{climate, realEstate}, pipeline.Options{Interval: cfg.RunInterval}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, app.AllReady{p, sinks}, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the jobs. A zero RUN_INTERVAL runs them once and exits.
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	exitCode := 0
	select {
	case err := <-done:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		} else {
			logger.Info("pipeline finished")
		}
	case <-ctx.Done():
		<-done
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := sinks.Close(); err != nil {
		logger.Error("sink close error", "error", err)
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
