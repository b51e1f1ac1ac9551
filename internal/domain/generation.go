package domain

import "context"

// ModelState tracks the lifecycle of the generation model handle:
// unloaded -> loading -> {loaded | load_failed}.
type ModelState int32

const (
	ModelUnloaded ModelState = iota
	ModelLoading
	ModelLoaded
	ModelLoadFailed
)

func (s ModelState) String() string {
	switch s {
	case ModelUnloaded:
		return "unloaded"
	case ModelLoading:
		return "loading"
	case ModelLoaded:
		return "loaded"
	case ModelLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Outcome tags a Generation so callers can branch without parsing messages.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

const (
	MessageModelNotLoaded  = "Model not loaded yet. Please wait..."
	MessageEmptyGeneration = "I'm sorry, I couldn't generate a response."
	messageErrorPrefix     = "Error generating response: "
)

// Generation is the tagged result of one generate call.
type Generation struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Message renders the text clients see for this result.
func (g Generation) Message() string {
	switch g.Outcome {
	case OutcomeSuccess:
		return g.Text
	case OutcomeUnavailable:
		return MessageModelNotLoaded
	default:
		if g.Err == nil {
			return messageErrorPrefix + "unknown error"
		}
		return messageErrorPrefix + g.Err.Error()
	}
}

// Sampling holds the decoding parameters. MaxLength counts prompt tokens too.
type Sampling struct {
	Temperature float64
	TopK        int
	TopP        float64
	MaxLength   int
}

// DefaultSampling mirrors the fixed decoding parameters of the service.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature: 0.6,
		TopK:        30,
		TopP:        0.9,
		MaxLength:   100,
	}
}

// Model is a loaded generation model. Generate returns only the continuation
// of prompt, which may be empty.
type Model interface {
	Generate(ctx context.Context, prompt string, params Sampling) (string, error)
}

// ModelLoader produces a Model. It is called once per process.
type ModelLoader interface {
	Load(ctx context.Context) (Model, error)
}
