package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go-simpler.org/env"
)

const (
	SentimentBackendKeyword = "keyword"
	SentimentBackendVader   = "vader"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8000"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	FrontendDir string `env:"FRONTEND_DIR" default:"frontend"`

	SentimentBackend string `env:"SENTIMENT_BACKEND" default:"keyword"`

	ModelName         string        `env:"MODEL_NAME" default:"microsoft/DialoGPT-small"`
	ModelBaseURL      string        `env:"MODEL_BASE_URL" default:"http://localhost:8080/v1"`
	ModelAPIKey       string        `env:"MODEL_API_KEY"`
	ModelDevice       string        `env:"MODEL_DEVICE" default:"cpu"`
	ModelLoadTimeout  time.Duration `env:"MODEL_LOAD_TIMEOUT" default:"60s"`
	ModelLoadAttempts int           `env:"MODEL_LOAD_ATTEMPTS" default:"1"`

	GenerationEOSToken string        `env:"GENERATION_EOS_TOKEN" default:"<|endoftext|>"`
	GenerationTimeout  time.Duration `env:"GENERATION_TIMEOUT" default:"0s"` // 0 disables the timeout

	GenerateRateLimit float64 `env:"GENERATE_RATE_LIMIT" default:"0"` // requests per second per client IP, 0 disables
	GenerateRateBurst int     `env:"GENERATE_RATE_BURST" default:"10"`

	RedisURL string `env:"REDIS_URL"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"PORT":           cfg.Port,
		"MODEL_NAME":     cfg.ModelName,
		"MODEL_BASE_URL": cfg.ModelBaseURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	switch cfg.SentimentBackend {
	case SentimentBackendKeyword, SentimentBackendVader:
	default:
		return fmt.Errorf("SENTIMENT_BACKEND must be %q or %q, got %q", SentimentBackendKeyword, SentimentBackendVader, cfg.SentimentBackend)
	}

	switch cfg.LogFormat {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of text, json, tint, got %q", cfg.LogFormat)
	}

	if cfg.ModelLoadAttempts < 1 {
		return errors.New("MODEL_LOAD_ATTEMPTS must be at least 1")
	}
	if cfg.ModelLoadTimeout <= 0 {
		return errors.New("MODEL_LOAD_TIMEOUT must be positive")
	}
	if cfg.GenerationTimeout < 0 {
		return errors.New("GENERATION_TIMEOUT must not be negative")
	}
	if cfg.GenerateRateLimit < 0 {
		return errors.New("GENERATE_RATE_LIMIT must not be negative")
	}
	if cfg.GenerateRateLimit > 0 && cfg.GenerateRateBurst < 1 {
		return errors.New("GENERATE_RATE_BURST must be at least 1 when rate limiting is enabled")
	}

	if cfg.RedisURL != "" {
		if _, err := goredis.ParseURL(cfg.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
	}

	return nil
}
