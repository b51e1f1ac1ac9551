package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/textpulse/internal/adapter/metrics"
	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/pscheid92/textpulse/internal/platform/config"
)

type appService interface {
	Classify(ctx context.Context, text string) domain.TextResponse
	Generate(ctx context.Context, text string) domain.GenerationResult
	ModelStatus() domain.ModelStatus
	SentimentModelName() string
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    appService
	clock  clockwork.Clock

	registry         *prometheus.Registry
	httpMetrics      *metrics.HTTPMetrics
	rateLimitMetrics *metrics.RateLimitMetrics
	rateLimitStore   middleware.RateLimiterStore
	rateLimitName    string

	healthChecks []HealthCheck
	startTime    time.Time
}

type Option func(*Server)

// WithMetrics exposes reg on /metrics and records HTTP and rate limit metrics into it.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = metrics.NewHTTPMetrics(reg)
		s.rateLimitMetrics = metrics.NewRateLimitMetrics(reg)
	}
}

// WithRateLimitStore replaces the in-memory /generate limiter store, e.g. with
// the Redis store shared by all replicas.
func WithRateLimitStore(name string, store middleware.RateLimiterStore) Option {
	return func(s *Server) {
		s.rateLimitName = name
		s.rateLimitStore = store
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, checks...)
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

func NewServer(cfg *config.Config, app appService, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    app,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
