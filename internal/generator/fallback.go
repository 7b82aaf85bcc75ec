package generator

import (
	"github.com/emberlake/attune/internal/emotion"
)

// fallbackResponses maps dominant emotions to the canned line used when the
// generation collaborator is unavailable.
var fallbackResponses = map[emotion.Label]string{
	emotion.Joy:         "I can sense your positive energy! That's wonderful to hear.",
	emotion.Sadness:     "I understand you might be feeling down. I'm here to listen.",
	emotion.Anger:       "I can tell you might be frustrated. Let's talk through this.",
	emotion.Fear:        "It sounds like you might be worried. That's completely understandable.",
	emotion.Surprise:    "That sounds unexpected! I'd love to hear more about it.",
	emotion.Amusement:   "I love that you're finding humor in things!",
	emotion.Excitement:  "Your enthusiasm comes through clearly!",
	emotion.Contentment: "You seem to be in a peaceful place right now.",
}

// genericFallback covers emotions without a dedicated canned line.
const genericFallback = "I'm here to chat with you and understand how you're feeling."

// FallbackResponse returns the deterministic substitute reply for a dominant
// emotion. The lookup never fails; unknown emotions get the generic line.
func FallbackResponse(dominant emotion.Label) string {
	if line, ok := fallbackResponses[dominant]; ok {
		return line
	}
	return genericFallback
}
