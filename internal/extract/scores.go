package extract

import (
	"strings"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// Keyword polarity lists for the sentiment heuristic. Deliberately small:
// this is a coarse signal for operator dashboards, not NLU.
var positiveWords = []string{
	"great", "good", "excited", "perfect", "awesome", "love", "yes",
	"definitely", "thanks", "thank you", "wonderful", "happy", "ready",
}

var negativeWords = []string{
	"no", "not", "confused", "frustrated", "problem", "worried", "cancel",
	"expensive", "difficult", "unhappy", "wrong", "bad",
}

// Sentiment counts keyword polarity over the transcript and returns
// (positive - negative) / total hits, in [-1,1]. No hits yields 0.
func Sentiment(transcript string) float64 {
	text := strings.ToLower(transcript)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(text, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(text, w)
	}

	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

// Confidence is the fraction of configured fields that were populated.
func Confidence(result model.ExtractionResult, configured int) float64 {
	if configured == 0 {
		return 0
	}
	return float64(len(result)) / float64(configured)
}

// Score computes both per-call scores for a stage's extraction result.
func Score(result model.ExtractionResult, stage model.CompiledStageSpec, transcript string) model.Scores {
	return model.Scores{
		Confidence: Confidence(result, len(stage.Fields)),
		Sentiment:  Sentiment(transcript),
	}
}
