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

	"github.com/lysyi3m/stream-comb/app/aggregator"
	"github.com/lysyi3m/stream-comb/app/api"
	"github.com/lysyi3m/stream-comb/app/cache"
	"github.com/lysyi3m/stream-comb/app/cfg"
	"github.com/lysyi3m/stream-comb/app/database"
	"github.com/lysyi3m/stream-comb/app/feed"
	"github.com/lysyi3m/stream-comb/app/fetcher"
	"github.com/lysyi3m/stream-comb/app/parser"
	"github.com/lysyi3m/stream-comb/app/source"
	"github.com/lysyi3m/stream-comb/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Stream Comb failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		// Help was shown
		return nil
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Stream Comb", "version", appCfg.Version, "port", appCfg.Port)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir, feed.DefaultEndpoints(appCfg.SocialAPIURL))
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load endpoint configurations: %w", err)
	}
	slog.Info("Endpoint configurations loaded",
		"feeds_dir", appCfg.FeedsDir,
		"configured", configCache.GetConfigCount(),
		"endpoints", len(configCache.AllEndpoints()))

	store, err := cache.Open(appCfg.CacheBackend, appCfg.CacheSize, appCfg.MaxCacheTTL(), appCfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()
	slog.Info("Cache ready", "backend", appCfg.CacheBackend)

	httpClient := source.NewHTTPClient(appCfg.FetchTimeout)
	adapters := map[feed.SourceKind]source.Adapter{
		feed.SourceRSS:    source.NewRSSAdapter(httpClient, feed.NewExtractor(), parser.NewParser(), appCfg.UserAgent),
		feed.SourceSocial: source.NewSocialAdapter(httpClient, appCfg.UserAgent),
	}

	sourceRepo := database.NewSourceRepository(db)

	feedFetcher := fetcher.New(store, adapters, sourceRepo, fetcher.Options{
		RSSTTL:       appCfg.RSSCacheTTL,
		SocialTTL:    appCfg.SocialCacheTTL,
		Concurrency:  appCfg.WorkerCount,
		HostInterval: appCfg.HostRateInterval,
		Record:       configCache.IsConfigured,
	})

	agg := aggregator.New(configCache, feedFetcher, feed.NewFilterer())

	scheduler := tasks.NewScheduler(configCache, feedFetcher, appCfg.SchedulerInterval, max(appCfg.WorkerCount, 1))
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(agg, configCache, sourceRepo, store, appCfg.BaseUrl)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appCfg.FetchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErr:
		return err
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Stream Comb shutdown complete")
	return nil
}
