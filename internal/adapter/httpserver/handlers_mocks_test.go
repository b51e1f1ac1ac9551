package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/pscheid92/textpulse/internal/platform/config"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	classifyFn    func(ctx context.Context, text string) domain.TextResponse
	generateFn    func(ctx context.Context, text string) domain.GenerationResult
	status        domain.ModelStatus
	sentimentName string
}

func (m *mockAppService) Classify(ctx context.Context, text string) domain.TextResponse {
	if m.classifyFn != nil {
		return m.classifyFn(ctx, text)
	}
	return domain.TextResponse{
		Text:       text,
		Prediction: domain.LabelNeutral,
		Confidence: 0.6,
		ModelInfo:  map[string]string{"model_name": "simple-sentiment-analyzer", "task": "sentiment-analysis"},
	}
}

func (m *mockAppService) Generate(ctx context.Context, text string) domain.GenerationResult {
	if m.generateFn != nil {
		return m.generateFn(ctx, text)
	}
	return domain.GenerationResult{
		InputText:     text,
		GeneratedText: domain.MessageModelNotLoaded,
		ModelInfo:     map[string]string{"model_name": "Llama-Model", "task": "text-generation"},
	}
}

func (m *mockAppService) ModelStatus() domain.ModelStatus {
	return m.status
}

func (m *mockAppService) SentimentModelName() string {
	if m.sentimentName != "" {
		return m.sentimentName
	}
	return "simple-sentiment-analyzer"
}

// --- Test helpers ---

// testConfig points FrontendDir at a directory that does not exist. Rate
// limiting stays off, as in the default config.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:        "0",
		FrontendDir: filepath.Join(t.TempDir(), "frontend"),
	}
}

func newTestServer(t *testing.T, app appService, opts ...Option) *Server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(t), app, opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, app appService, opts ...Option) *Server {
	t.Helper()
	return NewServer(cfg, app, opts...)
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
