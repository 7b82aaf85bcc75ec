// Package strategy selects the response approach and sampling temperature
// for a turn from its emotion analysis.
package strategy

import (
	"github.com/emberlake/attune/internal/emotion"
)

// Tag names a response strategy.
type Tag string

const (
	AmplifyPositive     Tag = "amplify_positive"
	GentleEncouragement Tag = "gentle_encouragement"
	EmpatheticSupport   Tag = "empathetic_support"
	BalancedEngagement  Tag = "balanced_engagement"
)

// Rule is a single strategy with its trigger set, activation threshold, and
// sampling temperature.
type Rule struct {
	Tag         Tag             `json:"tag"`
	Triggers    []emotion.Label `json:"triggers"`
	Threshold   float64         `json:"threshold"`
	Temperature float64         `json:"temperature"`
}

// DefaultTemperature applies when no rule matches.
const DefaultTemperature = 0.7

// DefaultRules returns the built-in strategy table. Evaluation order is part
// of the contract: positive strategies are tried before negative ones, so
// the table must stay a slice, never a map.
func DefaultRules() []Rule {
	return []Rule{
		{
			Tag:         AmplifyPositive,
			Triggers:    []emotion.Label{emotion.Joy, emotion.Excitement, emotion.Amusement, emotion.Enthusiasm},
			Threshold:   0.7,
			Temperature: 0.8,
		},
		{
			Tag:         GentleEncouragement,
			Triggers:    []emotion.Label{emotion.Contentment, emotion.Interest, emotion.Satisfaction},
			Threshold:   0.4,
			Temperature: 0.6,
		},
		{
			Tag:         EmpatheticSupport,
			Triggers:    []emotion.Label{emotion.Sadness, emotion.Anger, emotion.Fear, emotion.Disappointment, emotion.Shame},
			Threshold:   0.3,
			Temperature: 0.4,
		},
		{
			Tag:         BalancedEngagement,
			Triggers:    []emotion.Label{emotion.Doubt, emotion.Tiredness},
			Threshold:   0.2,
			Temperature: DefaultTemperature,
		},
	}
}

// Selector evaluates rules in table order against an emotion record.
type Selector struct {
	rules []Rule
}

// NewSelector creates a Selector from the given ordered rules. Nil or empty
// rules fall back to the built-in table.
func NewSelector(rules []Rule) *Selector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Selector{rules: rules}
}

// Select returns the first rule whose trigger set contains the record's
// dominant emotion and whose threshold the confidence meets. When nothing
// matches it falls back to balanced engagement at the default temperature.
// The function is pure: identical records always produce identical results.
func (s *Selector) Select(record emotion.Record) (Tag, float64) {
	for _, rule := range s.rules {
		if rule.matches(record) {
			return rule.Tag, rule.Temperature
		}
	}
	return BalancedEngagement, DefaultTemperature
}

// Rules returns the selector's rule table in evaluation order.
func (s *Selector) Rules() []Rule {
	return s.rules
}

func (r Rule) matches(record emotion.Record) bool {
	if record.Confidence < r.Threshold {
		return false
	}
	for _, trigger := range r.Triggers {
		if trigger == record.Dominant {
			return true
		}
	}
	return false
}
