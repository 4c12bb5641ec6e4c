package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fangwater/feedrace/internal/api"
	"github.com/fangwater/feedrace/internal/config"
	"github.com/fangwater/feedrace/internal/engine"
	"github.com/fangwater/feedrace/internal/feed"
	"github.com/fangwater/feedrace/internal/hub"
	"github.com/fangwater/feedrace/internal/report"
	"github.com/fangwater/feedrace/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("feedrace starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"feed_a", cfg.Feeds.A.Name,
		"feed_b", cfg.Feeds.B.Name,
		"report_interval", cfg.Report.Interval,
		"pending_ttl", cfg.Engine.PendingTTL,
		"storage", cfg.Storage.Backend,
	)

	// ctx ends on SIGINT/SIGTERM and stops the feeds and all tickers.
	// The engine runs on its own context so it can still answer the final
	// snapshot after ingestion has stopped.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	// Optional SQLite archive of completed pairs.
	var recorder *store.Recorder
	var onComplete func(engine.Record)
	recorderDone := make(chan struct{})
	if cfg.Storage.Backend == "sqlite" {
		recorder, err = store.Open(cfg.Storage)
		if err != nil {
			slog.Error("failed to open storage", "err", err)
			os.Exit(1)
		}
		onComplete = recorder.Record
		go func() {
			recorder.Run(engineCtx)
			close(recorderDone)
		}()
		slog.Info("storage enabled", "path", cfg.Storage.Path, "retention", cfg.Storage.Retention)
	} else {
		close(recorderDone)
	}

	eng := engine.New(engine.Options{
		PendingTTL: cfg.Engine.PendingTTL,
		OnComplete: onComplete,
	})
	go eng.Run(engineCtx)

	feedA := feed.New(cfg.Feeds.A, engine.SourceA, eng)
	feedB := feed.New(cfg.Feeds.B, engine.SourceB, eng)
	go feedA.Run(ctx)
	go feedB.Run(ctx)

	reporter := report.New(eng, feedA, feedB, cfg.Report.Interval)
	go reporter.Run(ctx)

	// Config hot-reload: only the report interval can change live; feed and
	// engine settings need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			reporter.SetInterval(updated.Report.Interval)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Snapshot broadcast hub for downstream websocket consumers.
	snapshotHub := hub.New(eng, feedA, feedB, cfg.Hub.Interval)
	go snapshotHub.Run(ctx)

	// HTTP surface: JSON snapshot API, health, Prometheus text metrics, and
	// the websocket hub. Port 0 disables it.
	var httpSrv *http.Server
	if cfg.HTTP.Port > 0 {
		apiHandler := api.New(eng, feedA, feedB, cfg.HTTP.Auth)
		mux := http.NewServeMux()
		mux.Handle("/api/", apiHandler)
		mux.Handle("/metrics", apiHandler)
		mux.Handle("/ws/stream", snapshotHub)

		httpSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler: mux,
		}
		go func() {
			slog.Info("HTTP server listening", "port", cfg.HTTP.Port)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("feedrace shutting down")

	if httpSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
		cancelShutdown()
	}

	// One last snapshot while the engine loop is still alive.
	reporter.Final(context.Background())

	stopEngine()
	<-recorderDone
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			slog.Error("storage close failed", "err", err)
		}
	}
}
