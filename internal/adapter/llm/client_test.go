package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/pscheid92/textpulse/internal/platform/retry"
	"github.com/pscheid92/textpulse/internal/platform/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testModel = "microsoft/DialoGPT-small"
	testEOS   = "<|endoftext|>"
)

// fakeServer mimics the two endpoints of an OpenAI-compatible server.
type fakeServer struct {
	*httptest.Server

	mu              sync.Mutex
	lastCompletion  map[string]any
	lastUserAgent   string
	lastAuth        string
	completionCalls atomic.Int32

	modelStatus      int
	completionStatus int
	completionText   string
	noChoices        bool
	completionDelay  time.Duration
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		modelStatus:      http.StatusOK,
		completionStatus: http.StatusOK,
		completionText:   "Hi there!",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.lastUserAgent = r.Header.Get("User-Agent")
		fs.lastAuth = r.Header.Get("Authorization")
		status := fs.modelStatus
		fs.mu.Unlock()

		if status != http.StatusOK {
			writeAPIError(w, status, "model not available")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v1/models/")
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "model", "created": 0, "owned_by": "test"})
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		fs.completionCalls.Add(1)

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		fs.mu.Lock()
		fs.lastCompletion = body
		status, text, delay, noChoices := fs.completionStatus, fs.completionText, fs.completionDelay, fs.noChoices
		fs.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != http.StatusOK {
			writeAPIError(w, status, "backend exploded")
			return
		}
		choices := []map[string]any{{"index": 0, "text": text, "finish_reason": "stop", "logprobs": nil}}
		if noChoices {
			choices = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "cmpl-1",
			"object":  "text_completion",
			"created": 0,
			"model":   testModel,
			"choices": choices,
		})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": msg, "type": "invalid_request_error"}})
}

func (fs *fakeServer) config() Config {
	return Config{
		BaseURL:  fs.URL + "/v1",
		Model:    testModel,
		EOSToken: testEOS,
	}
}

func (fs *fakeServer) lastBody() map[string]any {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastCompletion
}

func (fs *fakeServer) update(fn func(fs *fakeServer)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn(fs)
}

func (fs *fakeServer) probeHeaders() (userAgent, auth string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastUserAgent, fs.lastAuth
}

func loadModel(t *testing.T, cfg Config) domain.Model {
	t.Helper()
	model, err := NewLoader(cfg).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, model)
	return model
}

// --- Loader ---

func TestLoader_ProbeSuccess(t *testing.T) {
	fs := newFakeServer(t)
	cfg := fs.config()
	cfg.APIKey = "sk-test"

	loadModel(t, cfg)

	userAgent, auth := fs.probeHeaders()
	assert.Equal(t, version.UserAgent(), userAgent)
	assert.Equal(t, "Bearer sk-test", auth)
}

func TestLoader_UnknownModel(t *testing.T) {
	fs := newFakeServer(t)
	fs.update(func(fs *fakeServer) { fs.modelStatus = http.StatusNotFound })

	model, err := NewLoader(fs.config()).Load(context.Background())

	require.Error(t, err)
	assert.Nil(t, model)
	assert.Contains(t, err.Error(), testModel)
	assert.Equal(t, retry.Stop, ClassifyLoadError(err))
}

func TestLoader_ServerDown(t *testing.T) {
	fs := newFakeServer(t)
	cfg := fs.config()
	fs.Close()

	_, err := NewLoader(cfg).Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, retry.Retry, ClassifyLoadError(err))
}

func TestClassifyLoadError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   retry.Action
	}{
		{"unauthorized", http.StatusUnauthorized, retry.Stop},
		{"forbidden", http.StatusForbidden, retry.Stop},
		{"not found", http.StatusNotFound, retry.Stop},
		{"rate limited", http.StatusTooManyRequests, retry.After},
		{"unavailable", http.StatusServiceUnavailable, retry.Retry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t)
			fs.update(func(fs *fakeServer) { fs.modelStatus = tt.status })

			_, err := NewLoader(fs.config()).Load(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.want, ClassifyLoadError(err))
		})
	}

	t.Run("non api error", func(t *testing.T) {
		assert.Equal(t, retry.Retry, ClassifyLoadError(errors.New("dial tcp: refused")))
	})
}

// --- Model ---

func TestModel_GenerateSendsSamplingParameters(t *testing.T) {
	fs := newFakeServer(t)
	model := loadModel(t, fs.config())

	text, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)

	body := fs.lastBody()
	assert.Equal(t, testModel, body["model"])
	assert.Equal(t, "Hello"+testEOS, body["prompt"])
	assert.InDelta(t, 97, body["max_tokens"], 0)
	assert.InDelta(t, 0.6, body["temperature"], 1e-9)
	assert.InDelta(t, 0.9, body["top_p"], 1e-9)
	assert.InDelta(t, 30, body["top_k"], 0)
}

func TestModel_EmptyContinuation(t *testing.T) {
	fs := newFakeServer(t)
	fs.update(func(fs *fakeServer) { fs.completionText = "" })
	model := loadModel(t, fs.config())

	text, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestModel_NoChoicesIsAnError(t *testing.T) {
	fs := newFakeServer(t)
	fs.update(func(fs *fakeServer) { fs.noChoices = true })
	model := loadModel(t, fs.config())

	text, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())

	require.ErrorIs(t, err, ErrNoChoices)
	assert.Empty(t, text)
}

func TestModel_PromptExhaustsBudget(t *testing.T) {
	fs := newFakeServer(t)
	model := loadModel(t, fs.config())
	long := strings.Repeat("abcd", 100) + testEOS

	text, err := model.Generate(context.Background(), long, domain.DefaultSampling())

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, fs.completionCalls.Load())
}

func TestModel_ServerError(t *testing.T) {
	fs := newFakeServer(t)
	model := loadModel(t, fs.config())
	fs.update(func(fs *fakeServer) { fs.completionStatus = http.StatusInternalServerError })

	_, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
	assert.Equal(t, int32(1), fs.completionCalls.Load(), "request-time errors must not be retried")
}

func TestModel_GenerationTimeout(t *testing.T) {
	fs := newFakeServer(t)
	fs.update(func(fs *fakeServer) { fs.completionDelay = 2 * time.Second })
	cfg := fs.config()
	cfg.GenerationTimeout = 20 * time.Millisecond
	model := loadModel(t, cfg)

	_, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestModel_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fs := newFakeServer(t)
	var states []string
	cfg := fs.config()
	cfg.OnBreakerStateChange = func(state string) { states = append(states, state) }
	model := loadModel(t, cfg)
	fs.update(func(fs *fakeServer) { fs.completionStatus = http.StatusBadGateway })

	for range breakerConsecutiveFailures {
		_, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())
		require.Error(t, err)
	}

	_, err := model.Generate(context.Background(), "Hello"+testEOS, domain.DefaultSampling())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(breakerConsecutiveFailures), fs.completionCalls.Load())
	assert.Equal(t, []string{"open"}, states)
}

func TestModel_CancelledCallerDoesNotTripBreaker(t *testing.T) {
	fs := newFakeServer(t)
	fs.update(func(fs *fakeServer) { fs.completionDelay = 2 * time.Second })
	model := loadModel(t, fs.config())

	for range breakerConsecutiveFailures + 1 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		cancel()
		_, err := model.Generate(ctx, "Hello"+testEOS, domain.DefaultSampling())
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker is open")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		eos    string
		want   int
	}{
		{"eos only", testEOS, testEOS, 1},
		{"short", "Hello" + testEOS, testEOS, 3},
		{"exact multiple", "abcdabcd" + testEOS, testEOS, 3},
		{"no eos configured", "abcd", "", 1},
		{"eos missing from prompt", "abcdefgh", testEOS, 2},
		{"empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateTokens(tt.prompt, tt.eos))
		})
	}
}
