package engine

import (
	"sync"
	"time"
)

// Metrics aggregates turn statistics across sessions. Safe for concurrent use.
type Metrics struct {
	mu                  sync.Mutex
	turns               int64
	classifierFallbacks int64
	generatorFallbacks  int64
	persistFailures     int64
	emptyInputs         int64
	totalLatency        time.Duration
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordTurn(latency time.Duration, classifierFallback, generatorFallback, persistFailed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns++
	m.totalLatency += latency
	if classifierFallback {
		m.classifierFallbacks++
	}
	if generatorFallback {
		m.generatorFallbacks++
	}
	if persistFailed {
		m.persistFailures++
	}
}

func (m *Metrics) recordEmptyInput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emptyInputs++
}

// Stats is a point-in-time metrics snapshot.
type Stats struct {
	Turns               int64   `json:"turns"`
	ClassifierFallbacks int64   `json:"classifier_fallbacks"`
	GeneratorFallbacks  int64   `json:"generator_fallbacks"`
	PersistFailures     int64   `json:"persist_failures"`
	EmptyInputs         int64   `json:"empty_inputs"`
	AvgTurnMillis       float64 `json:"avg_turn_ms"`
}

// Snapshot returns current counters.
func (m *Metrics) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{
		Turns:               m.turns,
		ClassifierFallbacks: m.classifierFallbacks,
		GeneratorFallbacks:  m.generatorFallbacks,
		PersistFailures:     m.persistFailures,
		EmptyInputs:         m.emptyInputs,
	}
	if m.turns > 0 {
		stats.AvgTurnMillis = float64(m.totalLatency.Milliseconds()) / float64(m.turns)
	}
	return stats
}
