package emotion

import (
	"math"
	"testing"
	"time"
)

func TestClassifyFallback_KeywordHit(t *testing.T) {
	r := ClassifyFallback("I am so happy today", time.Now())

	if math.Abs(r.Scores[Joy]-0.3) > 1e-9 {
		t.Errorf("Expected joy 0.3, got %f", r.Scores[Joy])
	}
	if r.Dominant != Joy {
		t.Errorf("Expected dominant joy, got %s", r.Dominant)
	}
}

func TestClassifyFallback_MultipleHitsAccumulate(t *testing.T) {
	r := ClassifyFallback("happy and excited, this is great", time.Now())

	if math.Abs(r.Scores[Joy]-0.9) > 1e-9 {
		t.Errorf("Expected joy 0.9 from three hits, got %f", r.Scores[Joy])
	}
}

func TestClassifyFallback_CaseInsensitive(t *testing.T) {
	r := ClassifyFallback("I am FURIOUS", time.Now())

	if r.Dominant != Anger {
		t.Errorf("Expected dominant anger, got %s", r.Dominant)
	}
}

func TestClassifyFallback_NoMatchIsNeutral(t *testing.T) {
	r := ClassifyFallback("the meeting is at noon", time.Now())

	if r.Dominant != Contentment {
		t.Errorf("Expected neutral contentment, got %s", r.Dominant)
	}
	if r.Confidence != 0.5 {
		t.Errorf("Expected confidence 0.5, got %f", r.Confidence)
	}
}

func TestClassifyFallback_MixedEmotions(t *testing.T) {
	r := ClassifyFallback("I was scared but it turned out hilarious, haha", time.Now())

	if math.Abs(r.Scores[Fear]-0.3) > 1e-9 {
		t.Errorf("Expected fear 0.3, got %f", r.Scores[Fear])
	}
	if math.Abs(r.Scores[Amusement]-0.6) > 1e-9 {
		t.Errorf("Expected amusement 0.6, got %f", r.Scores[Amusement])
	}
	if r.Dominant != Amusement {
		t.Errorf("Expected dominant amusement, got %s", r.Dominant)
	}
}
