package domain

// Label is the sentiment class returned by a scorer.
type Label string

const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
	LabelNeutral  Label = "NEUTRAL"
)

// Classification is a scorer verdict. Confidence is a heuristic, not a
// calibrated probability, and is not clamped to 1.0.
type Classification struct {
	Label      Label
	Confidence float64
}

// Scorer maps text to a classification. Implementations are pure and safe for
// concurrent use.
type Scorer interface {
	Name() string
	Score(text string) Classification
}
