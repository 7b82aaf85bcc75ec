package emotion

import (
	"iter"
	"sort"
)

// DefaultHistoryCapacity bounds the sliding window when no capacity is given.
const DefaultHistoryCapacity = 10

// DefaultTrendWindow is how many recent records Trend averages over.
const DefaultTrendWindow = 5

// History is a fixed-capacity FIFO window of emotion records for one
// conversation session. It is not safe for concurrent use; the session
// manager serializes turns.
type History struct {
	window   []Record
	capacity int
}

// NewHistory creates a History with the given capacity. Non-positive
// capacities fall back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		window:   make([]Record, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a record, evicting the oldest when the window is full.
func (h *History) Add(r Record) {
	h.window = append(h.window, r)
	if len(h.window) > h.capacity {
		// Shift instead of re-slicing so the backing array does not pin
		// evicted records for the session lifetime.
		copy(h.window, h.window[1:])
		h.window = h.window[:h.capacity]
	}
}

// Len returns the number of records currently held.
func (h *History) Len() int {
	return len(h.window)
}

// Capacity returns the window bound.
func (h *History) Capacity() int {
	return h.capacity
}

// Latest returns the most recent record and whether one exists.
func (h *History) Latest() (Record, bool) {
	if len(h.window) == 0 {
		return Record{}, false
	}
	return h.window[len(h.window)-1], true
}

// Trend computes the mean score per vocabulary label over the last
// min(windowSize, Len()) records. An empty history yields an empty map.
func (h *History) Trend(windowSize int) map[Label]float64 {
	if len(h.window) == 0 {
		return map[Label]float64{}
	}
	if windowSize <= 0 {
		windowSize = DefaultTrendWindow
	}
	recent := h.window
	if len(recent) > windowSize {
		recent = recent[len(recent)-windowSize:]
	}

	sums := make(map[Label]float64, len(Vocabulary))
	for _, r := range recent {
		for l, s := range r.Scores {
			sums[l] += s
		}
	}
	n := float64(len(recent))
	for l := range sums {
		sums[l] /= n
	}
	return sums
}

// DominantSequence yields each record's dominant emotion, oldest first.
// The sequence is restartable and bounded by the window capacity.
func (h *History) DominantSequence() iter.Seq[Label] {
	return func(yield func(Label) bool) {
		for _, r := range h.window {
			if !yield(r.Dominant) {
				return
			}
		}
	}
}

// TopTrend returns the n highest-scoring trend entries in descending score
// order, ties broken by lexical label order.
func TopTrend(trend map[Label]float64, n int) []TrendEntry {
	entries := make([]TrendEntry, 0, len(trend))
	for l, s := range trend {
		entries = append(entries, TrendEntry{Label: l, Score: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Label < entries[j].Label
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// TrendEntry pairs a label with its trend score.
type TrendEntry struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}
