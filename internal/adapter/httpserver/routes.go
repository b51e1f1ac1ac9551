package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/textpulse/internal/adapter/metrics"
	"github.com/pscheid92/textpulse/internal/platform/correlation"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestIDMiddleware())
	s.echo.Use(s.setupRequestLoggerMiddleware())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(setupCORSMiddleware())
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(setupRecoverMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	if dirExists(s.config.FrontendDir) {
		s.echo.Static("/static", s.config.FrontendDir)
	} else {
		slog.Info("Frontend directory not found, /static disabled", "dir", s.config.FrontendDir)
	}

	s.registerPipelineRoutes()
	s.registerHealthRoutes()

	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
}

func (s *Server) setupRequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: correlation.NewID,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

// corsAllowMethods spells out every method because "*" is taken literally
// by browsers once credentials are allowed.
var corsAllowMethods = []string{
	http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions,
	http.MethodPatch, http.MethodPost, http.MethodPut,
}

// Allow any origin, method and header, with credentials. A wildcard origin
// is echoed back as the caller's origin because browsers reject "*" when
// credentials are allowed.
func setupCORSMiddleware() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:                             []string{"*"},
		AllowMethods:                             corsAllowMethods,
		AllowCredentials:                         true,
		UnsafeWildcardOriginWithAllowCredentials: true,
	})
}

// Panics surface as errors so ErrorHandlingMiddleware can answer with the
// panic message as detail.
func setupRecoverMiddleware() echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableErrorHandler: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			slog.ErrorContext(c.Request().Context(), "Recovered from panic",
				"path", c.Request().URL.Path,
				"error", err,
				"stack", string(stack))
			return err
		},
	})
}
