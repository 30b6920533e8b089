package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkotov/pricefeed/internal/cache/redis"
	"github.com/dkotov/pricefeed/internal/config"
	"github.com/dkotov/pricefeed/internal/connection"
	"github.com/dkotov/pricefeed/internal/database"
	"github.com/dkotov/pricefeed/internal/orchestrator"
	"github.com/dkotov/pricefeed/internal/publish"
	"github.com/dkotov/pricefeed/internal/store"
	"github.com/dkotov/pricefeed/internal/version"
	"github.com/dkotov/pricefeed/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/feed.local.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"exchanges", len(cfg.Exchanges),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Assemble the publisher chain. The in-memory store always runs; it
	// backs the /debug/prices endpoint.
	priceStore := store.New()
	publishers := publish.Multi{publish.NewStore(priceStore)}

	if cfg.Publish.Stdout {
		publishers = append(publishers, publish.NewLog(logger))
	}

	if cfg.Publish.UDPAddr != "" {
		udp, err := publish.NewUDP(cfg.Publish.UDPAddr, logger)
		if err != nil {
			logger.Error("failed to start udp publisher", "error", err)
			os.Exit(1)
		}
		defer udp.Close()
		publishers = append(publishers, udp)
		logger.Info("udp publisher started", "addr", cfg.Publish.UDPAddr)
	}

	if cfg.Postgres.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pw := writer.NewPriceWriter(writer.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
		}, pool, logger)
		if err := pw.Start(ctx); err != nil {
			logger.Error("failed to start price writer", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			pw.Stop(stopCtx)
		}()
		publishers = append(publishers, pw)
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()

		cachePub := redis.NewPublisher(redis.NewPriceCache(rc, cfg.Redis.KeyPrefix, cfg.Redis.TTL), logger)
		defer cachePub.Close()
		publishers = append(publishers, cachePub)
		logger.Info("redis cache publisher started", "addr", cfg.Redis.Addr)
	}

	// Build the feeds
	orch := orchestrator.New(cfg, publishers, logger)
	if err := orch.Build(); err != nil {
		logger.Error("failed to build feeds", "error", err)
		os.Exit(1)
	}

	// Start health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(orch, priceStore),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Run until shutdown
	runDone := make(chan error, 1)
	go func() { runDone <- orch.Run(ctx) }()

	logger.Info("feed running",
		"instance_id", cfg.Instance.ID,
		"supervisors", len(orch.Supervisors()),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	<-ctx.Done()

	logger.Info("shutting down...")
	<-runDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("feed stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(orch *orchestrator.Orchestrator, priceStore *store.Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		sups := orch.Supervisors()

		streaming := 0
		feeds := make([]map[string]interface{}, 0, len(sups))
		for _, sup := range sups {
			stats := sup.Stats()
			if stats.State == connection.StateStreaming {
				streaming++
			}
			feeds = append(feeds, map[string]interface{}{
				"id":        sup.ID(),
				"state":     stats.State.String(),
				"connects":  stats.Connects,
				"ticks":     stats.TicksOut,
				"malformed": stats.Malformed,
			})
		}

		status := "healthy"
		switch {
		case streaming == 0:
			status = "unhealthy"
		case streaming < len(sups):
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    status,
			"streaming": streaming,
			"total":     len(sups),
			"keys":      priceStore.Len(),
			"feeds":     feeds,
		})
	})

	mux.HandleFunc("/debug/prices", func(w http.ResponseWriter, r *http.Request) {
		snap := priceStore.Snapshot()

		// Limit to first 100 for debugging
		limit := 100
		showing := snap
		if len(showing) > limit {
			showing = showing[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(snap),
			"showing": len(showing),
			"prices":  showing,
		})
	})

	return mux
}
