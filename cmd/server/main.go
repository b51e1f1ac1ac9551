package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/textpulse/internal/adapter/httpserver"
	"github.com/pscheid92/textpulse/internal/adapter/llm"
	"github.com/pscheid92/textpulse/internal/adapter/metrics"
	"github.com/pscheid92/textpulse/internal/adapter/redis"
	"github.com/pscheid92/textpulse/internal/app"
	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/pscheid92/textpulse/internal/generation"
	"github.com/pscheid92/textpulse/internal/platform/config"
	"github.com/pscheid92/textpulse/internal/platform/logging"
	"github.com/pscheid92/textpulse/internal/platform/retry"
	"github.com/pscheid92/textpulse/internal/sentiment"
	goredis "github.com/redis/go-redis/v9"
)

const (
	loadInitialBackoff   = 1 * time.Second
	loadRateLimitBackoff = 10 * time.Second
	loadMaxBackoff       = 30 * time.Second
	shutdownTimeout      = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupScorer(cfg *config.Config) domain.Scorer {
	if cfg.SentimentBackend == config.SentimentBackendVader {
		return sentiment.NewVaderScorer()
	}
	return sentiment.NewKeywordScorer()
}

func setupGeneration(cfg *config.Config, pipeline *metrics.PipelineMetrics, clock clockwork.Clock) *generation.Adapter {
	loader := llm.NewLoader(llm.Config{
		BaseURL:              cfg.ModelBaseURL,
		APIKey:               cfg.ModelAPIKey,
		Model:                cfg.ModelName,
		EOSToken:             cfg.GenerationEOSToken,
		GenerationTimeout:    cfg.GenerationTimeout,
		OnBreakerStateChange: pipeline.BreakerStateChanged,
	})

	policy := retry.Policy{
		MaxAttempts:      cfg.ModelLoadAttempts,
		InitialBackoff:   loadInitialBackoff,
		RateLimitBackoff: loadRateLimitBackoff,
		MaxBackoff:       loadMaxBackoff,
		Clock:            clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Generation model load failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	return generation.NewAdapter(loader, cfg.GenerationEOSToken, cfg.ModelDevice,
		generation.WithLoadRetry(policy, llm.ClassifyLoadError),
		generation.WithObserver(pipeline),
		generation.WithClock(clock),
	)
}

// loadModel runs the load in the background so the HTTP
// surface is up while the model server warms up. Failures leave the adapter
// in load_failed; the service keeps answering.
func loadModel(cfg *config.Config, adapter *generation.Adapter) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ModelLoadTimeout)
		defer cancel()
		if err := adapter.Load(ctx); err != nil {
			slog.Error("Generation model unavailable, /generate will report it", "error", err)
		}
	}()
}

func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	hook := redis.NewMetricsHook(metrics.NewRedisMetrics(reg), clock)
	client, err := redis.NewClient(ctx, cfg.RedisURL, hook)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupServerOptions(cfg *config.Config, reg *prometheus.Registry, redisClient *goredis.Client, clock clockwork.Clock) []httpserver.Option {
	opts := []httpserver.Option{
		httpserver.WithMetrics(reg),
		httpserver.WithClock(clock),
	}
	if redisClient == nil {
		return opts
	}

	opts = append(opts, httpserver.WithHealthChecks(httpserver.HealthCheck{
		Name:  "redis",
		Check: redis.Ping(redisClient),
	}))

	if cfg.GenerateRateLimit > 0 {
		store, err := redis.NewRateLimitStore(redisClient, clock, cfg.GenerateRateLimit, cfg.GenerateRateBurst)
		if err != nil {
			slog.Error("Failed to create Redis rate limit store", "error", err)
			os.Exit(1)
		}
		slog.Info("Using Redis rate limiter for /generate", "window", store.Window(), "limit", cfg.GenerateRateBurst)
		opts = append(opts, httpserver.WithRateLimitStore("redis", store))
	}
	return opts
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	reg := metrics.NewRegistry()
	pipeline := metrics.NewPipelineMetrics(reg)

	scorer := setupScorer(cfg)
	slog.Info("Sentiment scorer ready", "scorer", scorer.Name())

	adapter := setupGeneration(cfg, pipeline, clock)
	loadModel(cfg, adapter)

	redisClient := setupRedis(context.Background(), cfg, reg, clock)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	appSvc := app.NewService(scorer, adapter, pipeline)
	srv := httpserver.NewServer(cfg, appSvc, setupServerOptions(cfg, reg, redisClient, clock)...)

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
