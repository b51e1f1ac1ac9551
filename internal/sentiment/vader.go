package sentiment

import (
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/russross/blackfriday/v2"
)

const (
	VaderScorerName = "vader-sentiment-analyzer"

	vaderPositiveThreshold = 0.20
	vaderNegativeThreshold = -0.20
)

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

// VaderScorer classifies text with the VADER lexicon after flattening any
// markdown to plain text.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (*VaderScorer) Name() string {
	return VaderScorerName
}

// Score maps the compound score to a label. Confidence is |compound| for
// POSITIVE and NEGATIVE and 1-|compound| for NEUTRAL.
func (s *VaderScorer) Score(text string) domain.Classification {
	compound := s.analyzer.PolarityScores(plainText(text)).Compound
	magnitude := math.Abs(compound)

	switch {
	case compound >= vaderPositiveThreshold:
		return domain.Classification{Label: domain.LabelPositive, Confidence: magnitude}
	case compound <= vaderNegativeThreshold:
		return domain.Classification{Label: domain.LabelNegative, Confidence: magnitude}
	default:
		return domain.Classification{Label: domain.LabelNeutral, Confidence: 1 - magnitude}
	}
}

// plainText renders markdown, drops the markup and bare URLs, and collapses whitespace.
// Link text survives; link targets do not.
func plainText(input string) string {
	rendered := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	text := tagPattern.ReplaceAllString(string(rendered), " ")
	text = html.UnescapeString(text)
	text = urlPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
