// Package personality tracks slowly-learned user traits from per-turn
// emotion signals.
package personality

import (
	"github.com/emberlake/attune/internal/emotion"
)

// Trait names the tracked personality dimensions.
type Trait string

const (
	Openness              Trait = "openness"
	EmotionalExpressivity Trait = "emotional_expressivity"
	HumorAppreciation     Trait = "humor_appreciation"
	SupportSeeking        Trait = "support_seeking"
	ConversationDepth     Trait = "conversation_depth"
)

// Traits lists every tracked trait.
var Traits = []Trait{
	Openness,
	EmotionalExpressivity,
	HumorAppreciation,
	SupportSeeking,
	ConversationDepth,
}

const (
	initialTraitScore      = 0.5
	initialTraitConfidence = 0.1

	// maxLearningRate caps how fast any single turn can move a trait.
	maxLearningRate = 0.1

	// DefaultEngagement is the neutral engagement signal used when the
	// caller has no measurement for the prior turn.
	DefaultEngagement = 0.5
)

// Update thresholds and step weights for each driven trait.
const (
	expressivityConfidenceMin = 0.6
	expressivityStep          = 0.2
	humorAmusementMin         = 0.3
	humorStep                 = 0.3
	supportNegativeSumMin     = 0.4
	supportStep               = 0.2
	depthEngagementMin        = 0.7
	depthStep                 = 0.1
)

// negativeEmotions is the subset whose combined score signals support seeking.
var negativeEmotions = []emotion.Label{
	emotion.Sadness,
	emotion.Fear,
	emotion.Anger,
	emotion.Disappointment,
	emotion.Shame,
}

// Profile is an exponentially-damped estimate of user traits for one
// conversation session. Scores stay in [0,1].
type Profile struct {
	TraitScores     map[Trait]float64 `json:"traits"`
	TraitConfidence map[Trait]float64 `json:"confidence"`
	UpdateCount     int               `json:"update_count"`
}

// NewProfile creates a Profile with every trait at the midpoint.
func NewProfile() *Profile {
	scores := make(map[Trait]float64, len(Traits))
	confidence := make(map[Trait]float64, len(Traits))
	for _, t := range Traits {
		scores[t] = initialTraitScore
		confidence[t] = initialTraitConfidence
	}
	return &Profile{
		TraitScores:     scores,
		TraitConfidence: confidence,
	}
}

// UpdateFromEmotion adjusts traits from one turn's emotion record. The
// learning rate decays harmonically with the update count so early turns
// move traits quickly and later turns stabilize them. engagement is a [0,1]
// signal of how deeply the user engaged with the prior response.
//
// Openness is deliberately left untouched here; it is reserved for signals
// this update does not carry.
func (p *Profile) UpdateFromEmotion(record emotion.Record, engagement float64) {
	p.UpdateCount++
	rate := min(maxLearningRate, 1.0/float64(p.UpdateCount))

	if record.Confidence > expressivityConfidenceMin {
		p.adjust(EmotionalExpressivity, rate*expressivityStep)
	}
	if record.Score(emotion.Amusement) > humorAmusementMin {
		p.adjust(HumorAppreciation, rate*humorStep)
	}
	if record.ScoreSum(negativeEmotions...) > supportNegativeSumMin {
		p.adjust(SupportSeeking, rate*supportStep)
	}
	if engagement > depthEngagementMin {
		p.adjust(ConversationDepth, rate*depthStep)
	}
}

func (p *Profile) adjust(t Trait, delta float64) {
	p.TraitScores[t] = clamp01(p.TraitScores[t] + delta)
}

// Score returns the current score for a trait.
func (p *Profile) Score(t Trait) float64 {
	return p.TraitScores[t]
}

// Clone returns a deep copy of the profile. Callers that hand the profile to
// anything running outside the session lock (encoders, background work) must
// clone first; the live maps keep mutating turn by turn.
func (p *Profile) Clone() *Profile {
	scores := make(map[Trait]float64, len(p.TraitScores))
	for t, s := range p.TraitScores {
		scores[t] = s
	}
	confidence := make(map[Trait]float64, len(p.TraitConfidence))
	for t, c := range p.TraitConfidence {
		confidence[t] = c
	}
	return &Profile{
		TraitScores:     scores,
		TraitConfidence: confidence,
		UpdateCount:     p.UpdateCount,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
