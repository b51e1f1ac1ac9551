package app

import (
	"context"

	"github.com/pscheid92/textpulse/internal/domain"
)

const (
	GenerationModelName = "Llama-Model"

	taskSentimentAnalysis = "sentiment-analysis"
	taskTextGeneration    = "text-generation"
)

// Generator is the part of generation.Adapter the service needs.
type Generator interface {
	Generate(ctx context.Context, text string) domain.Generation
	Status() domain.ModelStatus
}

// ClassificationRecorder is notified of every verdict. The metrics adapter
// implements it.
type ClassificationRecorder interface {
	Classified(scorer string, label domain.Label)
}

// Service is the application layer. It holds no mutable state of its own.
type Service struct {
	scorer    domain.Scorer
	generator Generator
	recorder  ClassificationRecorder
}

// NewService creates the application service. recorder may be nil.
func NewService(scorer domain.Scorer, generator Generator, recorder ClassificationRecorder) *Service {
	return &Service{
		scorer:    scorer,
		generator: generator,
		recorder:  recorder,
	}
}

// Classify scores text. It never consults the generation model.
func (s *Service) Classify(_ context.Context, text string) domain.TextResponse {
	verdict := s.scorer.Score(text)
	if s.recorder != nil {
		s.recorder.Classified(s.scorer.Name(), verdict.Label)
	}

	return domain.TextResponse{
		Text:       text,
		Prediction: verdict.Label,
		Confidence: verdict.Confidence,
		ModelInfo:  s.SentimentModelInfo(),
	}
}

// Generate asks the adapter for a continuation. Model problems are reported
// in GeneratedText, never as an error.
func (s *Service) Generate(ctx context.Context, text string) domain.GenerationResult {
	result := s.generator.Generate(ctx, text)

	return domain.GenerationResult{
		InputText:     text,
		GeneratedText: result.Message(),
		ModelInfo:     s.GenerationModelInfo(),
	}
}

func (s *Service) ModelStatus() domain.ModelStatus {
	return s.generator.Status()
}

func (s *Service) SentimentModelName() string {
	return s.scorer.Name()
}

func (s *Service) SentimentModelInfo() map[string]string {
	return map[string]string{"model_name": s.scorer.Name(), "task": taskSentimentAnalysis}
}

func (s *Service) GenerationModelInfo() map[string]string {
	return map[string]string{"model_name": GenerationModelName, "task": taskTextGeneration}
}
