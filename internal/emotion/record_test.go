package emotion

import (
	"testing"
	"time"
)

func TestNewRecord_FillsVocabulary(t *testing.T) {
	r := NewRecord("hello", map[Label]float64{Joy: 0.8}, time.Now())

	if len(r.Scores) != len(Vocabulary) {
		t.Errorf("Expected %d scores, got %d", len(Vocabulary), len(r.Scores))
	}
	if r.Scores[Sadness] != 0 {
		t.Errorf("Expected missing label to be 0, got %f", r.Scores[Sadness])
	}
	if r.Dominant != Joy {
		t.Errorf("Expected dominant joy, got %s", r.Dominant)
	}
	if r.Confidence != 0.8 {
		t.Errorf("Expected confidence 0.8, got %f", r.Confidence)
	}
}

func TestNewRecord_DropsUnknownLabels(t *testing.T) {
	r := NewRecord("hello", map[Label]float64{"confusion": 0.9, Interest: 0.4}, time.Now())

	if _, ok := r.Scores["confusion"]; ok {
		t.Error("Expected unknown label to be dropped")
	}
	if r.Dominant != Interest {
		t.Errorf("Expected dominant interest, got %s", r.Dominant)
	}
}

func TestNewRecord_TieBrokenByVocabularyOrder(t *testing.T) {
	// Sadness precedes excitement in the vocabulary.
	r := NewRecord("hm", map[Label]float64{Excitement: 0.6, Sadness: 0.6}, time.Now())

	if r.Dominant != Sadness {
		t.Errorf("Expected tie to resolve to sadness, got %s", r.Dominant)
	}
}

func TestNewRecord_AllZeroScores(t *testing.T) {
	r := NewRecord("", nil, time.Now())

	if r.Dominant != Vocabulary[0] {
		t.Errorf("Expected dominant %s for empty scores, got %s", Vocabulary[0], r.Dominant)
	}
	if r.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %f", r.Confidence)
	}
}

func TestRecord_ScoreSum(t *testing.T) {
	r := NewRecord("x", map[Label]float64{Sadness: 0.3, Fear: 0.2, Joy: 0.9}, time.Now())

	got := r.ScoreSum(Sadness, Fear, Anger)
	if got != 0.5 {
		t.Errorf("Expected sum 0.5, got %f", got)
	}
}

func TestRecord_CloneScores(t *testing.T) {
	r := NewRecord("x", map[Label]float64{Joy: 0.7}, time.Now())

	clone := r.CloneScores()
	clone[Joy] = 0

	if r.Scores[Joy] != 0.7 {
		t.Errorf("Expected original scores unchanged, got %f", r.Scores[Joy])
	}
}

func TestIsKnownLabel(t *testing.T) {
	if !IsKnownLabel(Tiredness) {
		t.Error("Expected tiredness to be known")
	}
	if IsKnownLabel("boredom") {
		t.Error("Expected boredom to be unknown")
	}
}
