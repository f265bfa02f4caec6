package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/outreach-analytics/internal/api"
	"github.com/ignite/outreach-analytics/internal/config"
	"github.com/ignite/outreach-analytics/internal/funnel"
	"github.com/ignite/outreach-analytics/internal/gridapi"
	"github.com/ignite/outreach-analytics/internal/pgsource"
	"github.com/ignite/outreach-analytics/internal/pkg/logger"
	"github.com/ignite/outreach-analytics/internal/reconcile"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Configure(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.RedactEnabled())
	logger.Info("starting outreach analytics server",
		"addr", cfg.Server.Addr(), "source_backend", cfg.Source.Backend)

	ctx := context.Background()

	src, cleanup, err := buildSource(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize event source: %v", err)
	}
	defer cleanup()

	var cache *funnel.Cache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The cache is optional; run without it rather than failing startup.
			logger.Warn("redis unreachable, running without result cache",
				"addr", cfg.Redis.Addr, "error", err)
		} else {
			cache = funnel.NewCache(rdb, time.Duration(cfg.Redis.TTLMinutes)*time.Minute)
			logger.Info("result cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	var snapshots funnel.Snapshots
	if cfg.Snapshot.Enabled {
		store, err := funnel.NewSnapshotStore(ctx, cfg.Snapshot.S3Bucket, cfg.Snapshot.S3Region)
		if err != nil {
			log.Fatalf("Failed to initialize snapshot store: %v", err)
		}
		snapshots = store
		logger.Info("snapshot store enabled", "bucket", cfg.Snapshot.S3Bucket)
	}

	svc := funnel.NewService(reconcile.New(src), cache, snapshots)
	server := api.NewServer(svc, cfg.Server.AllowedOrigins)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("server listening", "addr", cfg.Server.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// buildSource constructs the configured event-source backend. The returned
// cleanup releases backend resources on exit.
func buildSource(ctx context.Context, cfg *config.Config) (reconcile.Source, func(), error) {
	switch cfg.Source.Backend {
	case "grid":
		client := gridapi.NewClient(gridapi.Config{
			BaseURL:        cfg.Source.Grid.BaseURL,
			APIToken:       cfg.Source.Grid.APIToken,
			TimeoutSeconds: cfg.Source.Grid.TimeoutSeconds,
		})
		return client, func() {}, nil
	case "postgres":
		src, err := pgsource.Open(ctx, cfg.Source.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source backend %q", cfg.Source.Backend)
	}
}
