package generator

import (
	"testing"

	"github.com/emberlake/attune/internal/emotion"
)

func TestFallbackResponse_KnownEmotions(t *testing.T) {
	for _, label := range []emotion.Label{emotion.Joy, emotion.Sadness, emotion.Anger, emotion.Contentment} {
		if FallbackResponse(label) == genericFallback {
			t.Errorf("Expected dedicated line for %s", label)
		}
	}
}

func TestFallbackResponse_UnknownEmotionGetsGeneric(t *testing.T) {
	if FallbackResponse(emotion.Tiredness) != genericFallback {
		t.Error("Expected generic line for tiredness")
	}
	if FallbackResponse("") != genericFallback {
		t.Error("Expected generic line for empty label")
	}
}

func TestFallbackResponse_Deterministic(t *testing.T) {
	if FallbackResponse(emotion.Joy) != FallbackResponse(emotion.Joy) {
		t.Error("Expected identical responses for identical emotions")
	}
}
