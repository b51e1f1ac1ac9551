// Package llm reaches the generation model through an OpenAI-compatible
// completions server (vLLM, TGI, llama.cpp server and similar).
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/pscheid92/textpulse/internal/platform/retry"
	"github.com/pscheid92/textpulse/internal/platform/version"
	"github.com/sony/gobreaker"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second

	// Rough bytes-per-token ratio for GPT-2 style BPE on English text.
	bytesPerToken = 4
)

// ErrNoChoices means the server answered without any completion choice.
var ErrNoChoices = errors.New("completion response has no choices")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// EOSToken is the marker the adapter appends to every prompt. It counts as
	// a single token in the budget.
	EOSToken string
	// GenerationTimeout bounds one completion call. Zero means no timeout.
	GenerationTimeout time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
	// OnBreakerStateChange is called with the new breaker state ("closed",
	// "half-open" or "open").
	OnBreakerStateChange func(state string)
}

// Loader implements domain.ModelLoader against a completions server.
type Loader struct {
	client openai.Client
	cfg    Config
}

var _ domain.ModelLoader = (*Loader)(nil)

func NewLoader(cfg Config) *Loader {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithHeader("User-Agent", version.UserAgent()),
		// request-time failures are reported, never retried
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Loader{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Load checks that the server knows the configured model and returns a
// handle for it. Nothing is cached server side; the probe only proves the
// model is being served.
func (l *Loader) Load(ctx context.Context) (domain.Model, error) {
	info, err := l.client.Models.Get(ctx, l.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("probe model %q: %w", l.cfg.Model, err)
	}
	slog.Info("Model server reachable", "model", info.ID, "owned_by", info.OwnedBy, "base_url", l.cfg.BaseURL)

	return newCompletionModel(l.client, l.cfg), nil
}

// ClassifyLoadError tells retry.Do which probe failures are worth another
// attempt. Auth and unknown-model errors will not fix themselves.
func ClassifyLoadError(err error) retry.Action {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return retry.Retry
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return retry.Stop
	case http.StatusTooManyRequests:
		return retry.After
	default:
		return retry.Retry
	}
}

type completionModel struct {
	client  openai.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

func newCompletionModel(client openai.Client, cfg Config) *completionModel {
	settings := gobreaker.Settings{
		Name:    "model-server",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if cfg.OnBreakerStateChange != nil {
				cfg.OnBreakerStateChange(to.String())
			}
		},
		// a caller walking away says nothing about the server
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &completionModel{
		client:  client,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate samples a continuation of prompt. MaxLength includes the prompt,
// so the completion budget is what is left after the estimated prompt size.
func (m *completionModel) Generate(ctx context.Context, prompt string, params domain.Sampling) (string, error) {
	budget := params.MaxLength - estimateTokens(prompt, m.cfg.EOSToken)
	if budget <= 0 {
		slog.DebugContext(ctx, "Prompt exhausts token budget, skipping model call", "max_length", params.MaxLength)
		return "", nil
	}

	if m.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.GenerationTimeout)
		defer cancel()
	}

	res, err := m.breaker.Execute(func() (any, error) {
		completion, err := m.client.Completions.New(ctx, openai.CompletionNewParams{
			Model:       openai.CompletionNewParamsModel(m.cfg.Model),
			Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(prompt)},
			MaxTokens:   openai.Int(int64(budget)),
			Temperature: openai.Float(params.Temperature),
			TopP:        openai.Float(params.TopP),
		}, option.WithJSONSet("top_k", params.TopK))
		if err != nil {
			return nil, err
		}
		if completion == nil || len(completion.Choices) == 0 {
			return nil, ErrNoChoices
		}
		return completion.Choices[0].Text, nil
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	return res.(string), nil
}

// estimateTokens approximates the prompt length in tokens. A trailing EOS
// marker counts as one token.
func estimateTokens(prompt, eos string) int {
	tokens := 0
	if eos != "" && strings.HasSuffix(prompt, eos) {
		prompt = strings.TrimSuffix(prompt, eos)
		tokens = 1
	}
	return tokens + (len(prompt)+bytesPerToken-1)/bytesPerToken
}
