// Package emotion provides emotion scoring records, the sliding history
// window used for trend computation, and the local fallback classifier.
package emotion

import (
	"time"
)

// Label identifies one emotion category from the closed vocabulary.
type Label string

// The fixed emotion vocabulary. Order matters: dominant-emotion ties are
// broken by first position in this list.
const (
	Joy            Label = "joy"
	Sadness        Label = "sadness"
	Anger          Label = "anger"
	Fear           Label = "fear"
	Surprise       Label = "surprise"
	Disgust        Label = "disgust"
	Contempt       Label = "contempt"
	Excitement     Label = "excitement"
	Amusement      Label = "amusement"
	Contentment    Label = "contentment"
	Disappointment Label = "disappointment"
	Doubt          Label = "doubt"
	Enthusiasm     Label = "enthusiasm"
	Interest       Label = "interest"
	Satisfaction   Label = "satisfaction"
	Shame          Label = "shame"
	Sympathy       Label = "sympathy"
	Tiredness      Label = "tiredness"
)

// Vocabulary lists every tracked emotion label in tie-break order.
var Vocabulary = []Label{
	Joy, Sadness, Anger, Fear, Surprise, Disgust,
	Contempt, Excitement, Amusement, Contentment,
	Disappointment, Doubt, Enthusiasm, Interest,
	Satisfaction, Shame, Sympathy, Tiredness,
}

var vocabularySet = func() map[Label]struct{} {
	set := make(map[Label]struct{}, len(Vocabulary))
	for _, l := range Vocabulary {
		set[l] = struct{}{}
	}
	return set
}()

// IsKnownLabel reports whether l belongs to the fixed vocabulary.
func IsKnownLabel(l Label) bool {
	_, ok := vocabularySet[l]
	return ok
}

// Record is one scored analysis of one utterance. It is immutable after
// construction; Scores always contains every vocabulary label.
type Record struct {
	Scores     map[Label]float64 `json:"emotions"`
	Dominant   Label             `json:"dominant_emotion"`
	Confidence float64           `json:"confidence"`
	Timestamp  time.Time         `json:"timestamp"`
	SourceText string            `json:"source_text"`
}

// NewRecord builds a Record from raw classifier scores. Labels outside the
// vocabulary are discarded, missing labels are filled with 0.0, and the
// dominant emotion is the highest-scoring label with ties broken by
// vocabulary order.
func NewRecord(text string, scores map[Label]float64, at time.Time) Record {
	full := make(map[Label]float64, len(Vocabulary))
	for _, l := range Vocabulary {
		full[l] = scores[l]
	}

	dominant := Vocabulary[0]
	best := full[dominant]
	for _, l := range Vocabulary[1:] {
		if full[l] > best {
			dominant = l
			best = full[l]
		}
	}

	return Record{
		Scores:     full,
		Dominant:   dominant,
		Confidence: best,
		Timestamp:  at,
		SourceText: text,
	}
}

// Score returns the score for a label, treating unknown labels as 0.
func (r Record) Score(l Label) float64 {
	return r.Scores[l]
}

// ScoreSum returns the summed score of the given labels.
func (r Record) ScoreSum(labels ...Label) float64 {
	var sum float64
	for _, l := range labels {
		sum += r.Scores[l]
	}
	return sum
}

// CloneScores returns a defensive copy of the score mapping.
func (r Record) CloneScores() map[Label]float64 {
	out := make(map[Label]float64, len(r.Scores))
	for l, s := range r.Scores {
		out[l] = s
	}
	return out
}
