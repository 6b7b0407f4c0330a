// Command searcher serves sentence search over HTTP.
//
// It loads corpora from the configured source (a directory of sentence files,
// a remote file server, or PostgreSQL), keeps the most recently used corpus in
// memory, and answers basic and advanced searches against it. Redis result
// caching, Kafka analytics and Kafka-driven invalidation are optional.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus"
	corpuscache "github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/source"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/watcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher"
	resultcache "github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/resilience"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"source", cfg.Corpus.Source,
		"workers", cfg.Search.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	src, closeSource, err := buildSource(ctx, cfg, m, checker)
	if err != nil {
		slog.Error("failed to set up corpus source", "error", err)
		os.Exit(1)
	}
	defer closeSource()

	corpora := corpuscache.New(src, corpuscache.WithMetrics(m))

	engine, err := executor.NewSharded(cfg.Search.Workers, cfg.Search.ShardSize)
	if err != nil {
		slog.Error("failed to create search engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	opts := []searcher.Option{
		searcher.WithLister(src),
		searcher.WithMetrics(m),
		searcher.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxResults),
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, searcher.WithResultCache(resultcache.New(redisClient, cfg.Redis.CacheTTL, m)))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, searcher.WithTracker(collector))
	}

	svc := searcher.New(corpora, engine, opts...)

	if cfg.Kafka.Enabled {
		host, _ := os.Hostname()
		invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusInvalidate,
			cfg.Kafka.ConsumerGroup+"-invalidate-"+host, svc.InvalidationHandler())
		go func() {
			if err := invalidations.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("listening for corpus invalidations", "topic", cfg.Kafka.Topics.CorpusInvalidate)
	}

	if fs, ok := src.(*source.FileSource); ok && cfg.Corpus.Watch {
		w, err := watcher.New(fs.Dir(), func(key string) {
			if err := svc.Invalidate(ctx, key); err != nil {
				slog.Error("invalidation after file change failed", "key", key, "error", err)
			}
		})
		if err != nil {
			slog.Warn("corpus watcher disabled", "error", err)
		} else {
			go func() {
				if err := w.Run(ctx); err != nil {
					slog.Error("corpus watcher error", "error", err)
				}
			}()
		}
	}

	checker.Register("corpus_cache", func(ctx context.Context) health.ComponentHealth {
		st := svc.Status()
		switch {
		case st.Loaded:
			return health.ComponentHealth{Status: health.StatusUp, Message: "serving " + st.Key}
		case st.Loading:
			return health.ComponentHealth{Status: health.StatusUp, Message: "loading"}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "no corpus loaded"}
		}
	})

	h := handler.New(svc)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...))(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "searcher")
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// buildSource returns the configured corpus source and a function releasing
// its resources.
func buildSource(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker) (corpus.Source, func(), error) {
	switch cfg.Corpus.Source {
	case config.SourceHTTP:
		src := source.NewHTTPSource(source.HTTPSourceConfig{
			BaseURL: cfg.Corpus.RemoteURL,
			Timeout: cfg.Corpus.FetchTimeout,
			Retry: resilience.RetryConfig{
				MaxAttempts:  cfg.Corpus.Retry.MaxAttempts,
				InitialDelay: cfg.Corpus.Retry.InitialDelay,
				MaxDelay:     cfg.Corpus.Retry.MaxDelay,
			},
			OnBreakerTrip: func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		checker.Register("corpus_source", func(ctx context.Context) health.ComponentHealth {
			if src.Breaker().GetState() == resilience.StateOpen {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit open"}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: cfg.Corpus.RemoteURL}
		})
		slog.Info("using remote corpus source", "url", cfg.Corpus.RemoteURL)
		return src, func() {}, nil

	case config.SourcePostgres:
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		src := source.NewPostgresSource(db)
		if err := src.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		checker.Register("corpus_source", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		slog.Info("using postgres corpus source", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return src, func() { db.Close() }, nil

	default:
		src := source.NewFileSource(cfg.Corpus.DataDir)
		checker.Register("corpus_source", func(ctx context.Context) health.ComponentHealth {
			if _, err := os.Stat(src.Dir()); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: src.Dir()}
		})
		slog.Info("using file corpus source", "dir", cfg.Corpus.DataDir)
		return src, func() {}, nil
	}
}
