package sentiment

import (
	"strings"

	"github.com/pscheid92/textpulse/internal/domain"
)

const (
	KeywordScorerName = "simple-sentiment-analyzer"

	baseConfidence    = 0.7
	perMatchBoost     = 0.1
	neutralConfidence = 0.6
)

var positiveWords = []string{
	"love", "great", "good", "excellent", "amazing",
	"wonderful", "fantastic", "awesome", "best", "perfect",
}

// "terrible", "awful" and "hate" are listed twice on purpose: each entry counts
// separately, so a single "terrible" contributes two negative matches.
var negativeWords = []string{
	"hate", "terrible", "bad", "awful", "horrible",
	"worst", "disgusting", "terrible", "awful", "hate",
}

// KeywordScorer compares positive and negative keyword counts.
type KeywordScorer struct{}

func NewKeywordScorer() KeywordScorer {
	return KeywordScorer{}
}

func (KeywordScorer) Name() string {
	return KeywordScorerName
}

// Score lower-cases text and counts list entries contained in it. Matching is
// substring based, so "hated" matches "hate". The larger count wins with
// confidence 0.7 + 0.1 per match (not clamped); a tie is NEUTRAL at 0.6.
func (KeywordScorer) Score(text string) domain.Classification {
	lowerText := strings.ToLower(text)

	positive := countMatches(lowerText, positiveWords)
	negative := countMatches(lowerText, negativeWords)

	switch {
	case positive > negative:
		return domain.Classification{Label: domain.LabelPositive, Confidence: baseConfidence + float64(positive)*perMatchBoost}
	case negative > positive:
		return domain.Classification{Label: domain.LabelNegative, Confidence: baseConfidence + float64(negative)*perMatchBoost}
	default:
		return domain.Classification{Label: domain.LabelNeutral, Confidence: neutralConfidence}
	}
}

func countMatches(lowerText string, words []string) int {
	count := 0
	for _, word := range words {
		if strings.Contains(lowerText, word) {
			count++
		}
	}
	return count
}
