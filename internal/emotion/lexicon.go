package emotion

import (
	"strings"
	"time"
)

// keywordWeight is how much each lexicon hit contributes to a label's score.
const keywordWeight = 0.3

// neutralFallbackScore is assigned to contentment when no keyword matches.
const neutralFallbackScore = 0.5

// fallbackLexicon maps labels to keyword cues for the local classifier.
// Only a subset of the vocabulary has cues; the rest stays at zero.
var fallbackLexicon = map[Label][]string{
	Joy:       {"happy", "joy", "excited", "great", "awesome", "wonderful", "amazing"},
	Sadness:   {"sad", "depressed", "down", "unhappy", "disappointed", "upset"},
	Anger:     {"angry", "mad", "furious", "annoyed", "frustrated", "irritated"},
	Fear:      {"scared", "afraid", "worried", "anxious", "nervous", "terrified"},
	Surprise:  {"surprised", "shocked", "unexpected", "sudden", "wow"},
	Amusement: {"funny", "hilarious", "laugh", "haha", "lol", "amusing"},
}

// ClassifyFallback scores text with the keyword lexicon. It is the
// deterministic local substitute used when the remote classifier is
// unavailable: every hit adds a fixed weight, and when nothing matches the
// result is a neutral contentment record at 0.5.
func ClassifyFallback(text string, at time.Time) Record {
	lower := strings.ToLower(text)

	scores := make(map[Label]float64, len(fallbackLexicon))
	matched := false
	for label, keywords := range fallbackLexicon {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				scores[label] += keywordWeight
				matched = true
			}
		}
	}

	if !matched {
		scores[Contentment] = neutralFallbackScore
	}

	return NewRecord(text, scores, at)
}
