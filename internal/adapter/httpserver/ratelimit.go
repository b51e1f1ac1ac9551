package httpserver

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/textpulse/internal/adapter/metrics"
	apperrors "github.com/pscheid92/textpulse/internal/platform/errors"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry   = 5 * time.Minute
	memoryRateLimitName = "memory"
)

func newMemoryRateLimitStore(ratePerSecond float64, burst int) middleware.RateLimiterStore {
	return middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
}

// observedStore records decisions and lets requests through when the
// backing store fails, so a Redis outage does not take /generate down.
type observedStore struct {
	name    string
	inner   middleware.RateLimiterStore
	metrics *metrics.RateLimitMetrics
}

func (s *observedStore) Allow(identifier string) (bool, error) {
	allowed, err := s.inner.Allow(identifier)
	if s.metrics != nil {
		s.metrics.Observe(s.name, allowed, err)
	}
	if err != nil {
		slog.Warn("Rate limit store failed, allowing request", "store", s.name, "error", err)
		return true, nil
	}
	return allowed, nil
}

func newRateLimiter(name string, store middleware.RateLimiterStore, m *metrics.RateLimitMetrics) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: &observedStore{name: name, inner: store, metrics: m},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			denied := apperrors.RateLimitedError("rate limit exceeded")
			return c.JSON(denied.HTTPStatus(), denied.ToResponse())
		},
	})
}

// generateRateLimiter returns the /generate limiter, or nil when disabled.
func (s *Server) generateRateLimiter() echo.MiddlewareFunc {
	if s.config.GenerateRateLimit <= 0 {
		return nil
	}

	name, store := s.rateLimitName, s.rateLimitStore
	if store == nil {
		name, store = memoryRateLimitName, newMemoryRateLimitStore(s.config.GenerateRateLimit, s.config.GenerateRateBurst)
	}
	return newRateLimiter(name, store, s.rateLimitMetrics)
}
