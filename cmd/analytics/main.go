// Command analytics starts the standalone search analytics service.
//
// It consumes search and corpus-load events from Kafka, aggregates them in
// memory (searches per mode, latency percentiles, cache hit rate, zero-result
// queries, corpus loads) and serves them at GET /api/v1/analytics. With
// analytics.snapshots enabled it also stores periodic snapshots in PostgreSQL
// and serves them at GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"strconv"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "", aggregator.Handler())
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	analyticsHandler := analytics.NewHandler(aggregator)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if cfg.Analytics.Snapshots {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := snapshot.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshotsHandler(store))
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	m := metrics.New()
	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

// snapshotsHandler serves the newest ?limit= snapshots (default 10).
func snapshotsHandler(store *snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 1000 {
				http.Error(w, `{"error":"limit must be between 1 and 1000"}`, http.StatusBadRequest)
				return
			}
			limit = n
		}
		snapshots, err := store.List(r.Context(), limit)
		if err != nil {
			logger.FromContext(r.Context()).Error("listing snapshots failed", "error", err)
			http.Error(w, `{"error":"listing snapshots failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"snapshots": snapshots}); err != nil {
			slog.Error("failed to write snapshots", "error", err)
		}
	}
}
