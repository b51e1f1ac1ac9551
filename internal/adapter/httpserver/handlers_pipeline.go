package httpserver

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/textpulse/internal/app"
	apperrors "github.com/pscheid92/textpulse/internal/platform/errors"
)

const (
	rootMessage           = "ML Pipeline API is running"
	healthMessageLoaded   = "ML Pipeline API is running with Llama model"
	healthMessageFallback = "ML Pipeline API is running with fallback"
	statusModelReady      = "Llama model loaded and ready"
	statusFallback        = "Using fallback system"
)

// textRequest distinguishes a missing "text" field from an empty one.
type textRequest struct {
	Text *string `json:"text"`
}

func (s *Server) registerPipelineRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/classify", s.handleClassify)
	s.echo.GET("/model-info", s.handleModelInfo)

	if limiter := s.generateRateLimiter(); limiter != nil {
		s.echo.POST("/generate", s.handleGenerate, limiter)
	} else {
		s.echo.POST("/generate", s.handleGenerate)
	}
}

// handleRoot serves the frontend page when one is installed. The file is
// looked up on every request so it can be added while the server runs.
func (s *Server) handleRoot(c echo.Context) error {
	index := filepath.Join(s.config.FrontendDir, "index.html")
	if fileExists(index) {
		return c.File(index)
	}

	response := map[string]any{
		"message":      rootMessage,
		"status":       "healthy",
		"model_loaded": s.app.ModelStatus().Loaded(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write root response: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	loaded := s.app.ModelStatus().Loaded()
	message := healthMessageFallback
	if loaded {
		message = healthMessageLoaded
	}

	response := map[string]any{
		"status":       "healthy",
		"model_loaded": loaded,
		"message":      message,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleClassify(c echo.Context) error {
	text, err := bindText(c)
	if err != nil {
		return err
	}

	resp := s.app.Classify(c.Request().Context(), text)
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write classify response: %w", err)
	}
	return nil
}

func (s *Server) handleGenerate(c echo.Context) error {
	text, err := bindText(c)
	if err != nil {
		return err
	}

	resp := s.app.Generate(c.Request().Context(), text)
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write generate response: %w", err)
	}
	return nil
}

func (s *Server) handleModelInfo(c echo.Context) error {
	status := s.app.ModelStatus()
	statusText := statusFallback
	if status.Loaded() {
		statusText = statusModelReady
	}

	response := map[string]any{
		"sentiment_model":  s.app.SentimentModelName(),
		"generation_model": app.GenerationModelName,
		"models_loaded":    status.Loaded(),
		"device":           status.Device,
		"status":           statusText,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write model info response: %w", err)
	}
	return nil
}

func bindText(c echo.Context) (string, error) {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return "", err
	}
	if req.Text == nil {
		return "", apperrors.UnprocessableError("text is required").WithContext("field", "text")
	}
	return *req.Text, nil
}
