package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkessler/zettelwerk/internal/bootstrap"
	"github.com/mkessler/zettelwerk/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.ServiceWorker)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		app.Logger.Info("metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		if err := app.Watcher.Run(ctx); err != nil && ctx.Err() == nil {
			app.Logger.Error("watch folder stopped", "error", err)
		}
	}()

	app.Logger.Info("worker polling queue",
		"interval_seconds", cfg.QueuePollIntervalSec, "watch_dir", cfg.WatchDir)
	if err := app.Worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
