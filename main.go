package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"challenge-monitor/internal/api"
	"challenge-monitor/internal/dispatch"
	"challenge-monitor/internal/events"
	"challenge-monitor/internal/monitor"
	"challenge-monitor/internal/notify"
	"challenge-monitor/internal/rules"
	"challenge-monitor/pkg/config"
	"challenge-monitor/pkg/db"
	"challenge-monitor/pkg/metastats"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("challenge monitor starting on port %s", cfg.Port)
	log.Printf("using database at %s", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	alerts := monitor.New(bus)
	alerts.Start(ctx)

	// Rule thresholds, with optional YAML overrides
	ruleCfg := rules.DefaultConfig()
	if cfg.RulesConfigPath != "" {
		ruleCfg, err = rules.LoadConfig(cfg.RulesConfigPath)
		if err != nil {
			log.Fatalf("failed to load rule config: %v", err)
		}
	}
	boundary, err := rules.NewBoundary(cfg.ResetHour, cfg.ResetTimezone)
	if err != nil {
		log.Fatalf("invalid trading-day boundary: %v", err)
	}

	// MetaStats provider clients
	restClient := metastats.NewClient(cfg.MetaStatsAuthToken, cfg.MetaStatsBaseURL)
	streamClient := metastats.NewStreamClient(cfg.MetaStatsStreamURL, cfg.MetaStatsAuthToken)

	notifier := notify.New(cfg.BackendAPIURL, cfg.BackendSecretToken, bus)

	dispatcher := dispatch.New(rules.NewEvaluator(ruleCfg), boundary, restClient, database, notifier, bus)
	registry := dispatch.NewRegistry(ctx, dispatcher, database, streamClient, cfg.DebounceWindow)
	defer registry.Close()

	if cfg.StartListeners {
		registry.RegisterAll(ctx)
		log.Printf("push listeners started for %d accounts", len(registry.Active()))
	}

	// Periodic poll pass over every in-progress challenge
	if cfg.PollInterval > 0 {
		go pollLoop(ctx, cfg.PollInterval, database, dispatcher)
		log.Printf("poll pass enabled every %v", cfg.PollInterval)
	}

	// API
	server := api.NewServer(database, dispatcher, registry)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")

	// Let in-flight requests finish before the deferred teardown runs.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown: %v", err)
	}
}

// pollLoop re-evaluates every in-progress challenge on a fixed interval.
// It backs off when the provider's rate budget is nearly spent.
func pollLoop(ctx context.Context, interval time.Duration, database *db.Database, d *dispatch.Dispatcher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if fetcher, ok := d.Fetcher.(*metastats.Client); ok && fetcher.ShouldDelay() {
				log.Println("poll pass skipped: provider rate budget nearly exhausted")
				continue
			}
			chs, err := database.ListInProgress(ctx, "")
			if err != nil {
				log.Printf("poll pass list failed: %v", err)
				continue
			}
			outcomes := d.RunBatch(ctx, chs)
			log.Printf("poll pass evaluated %d accounts", len(outcomes))
		}
	}
}
