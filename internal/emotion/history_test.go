package emotion

import (
	"math"
	"testing"
	"time"
)

func recordWith(label Label, score float64) Record {
	return NewRecord("t", map[Label]float64{label: score}, time.Now())
}

func TestHistory_WindowBound(t *testing.T) {
	h := NewHistory(10)

	for i := 0; i < 15; i++ {
		h.Add(recordWith(Joy, float64(i)/100))
	}

	if h.Len() != 10 {
		t.Errorf("Expected window length 10, got %d", h.Len())
	}
	latest, ok := h.Latest()
	if !ok {
		t.Fatal("Expected a latest record")
	}
	if latest.Scores[Joy] != 0.14 {
		t.Errorf("Expected newest record kept, got joy=%f", latest.Scores[Joy])
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	h.Add(recordWith(Joy, 0.1))
	h.Add(recordWith(Sadness, 0.2))
	h.Add(recordWith(Anger, 0.3))
	h.Add(recordWith(Fear, 0.4))

	var dominants []Label
	for l := range h.DominantSequence() {
		dominants = append(dominants, l)
	}

	want := []Label{Sadness, Anger, Fear}
	if len(dominants) != len(want) {
		t.Fatalf("Expected %d dominants, got %d", len(want), len(dominants))
	}
	for i, l := range want {
		if dominants[i] != l {
			t.Errorf("Expected dominant[%d]=%s, got %s", i, l, dominants[i])
		}
	}
}

func TestHistory_TrendEmpty(t *testing.T) {
	h := NewHistory(10)

	trend := h.Trend(5)
	if trend == nil {
		t.Fatal("Expected empty map, got nil")
	}
	if len(trend) != 0 {
		t.Errorf("Expected empty trend, got %d entries", len(trend))
	}
}

func TestHistory_TrendSingleRecord(t *testing.T) {
	h := NewHistory(10)
	h.Add(recordWith(Joy, 0.8))

	trend := h.Trend(5)
	if trend[Joy] != 0.8 {
		t.Errorf("Expected single-record trend to equal its scores, got %f", trend[Joy])
	}
}

func TestHistory_TrendAveragesRecentWindow(t *testing.T) {
	h := NewHistory(10)
	// First record falls outside the 5-record trend window.
	h.Add(recordWith(Joy, 1.0))
	for i := 0; i < 5; i++ {
		h.Add(recordWith(Joy, 0.5))
	}

	trend := h.Trend(5)
	if math.Abs(trend[Joy]-0.5) > 1e-9 {
		t.Errorf("Expected trend 0.5 over last 5 records, got %f", trend[Joy])
	}
}

func TestHistory_TrendFewerThanWindow(t *testing.T) {
	h := NewHistory(10)
	h.Add(recordWith(Joy, 0.2))
	h.Add(recordWith(Joy, 0.4))

	trend := h.Trend(5)
	if math.Abs(trend[Joy]-0.3) > 1e-9 {
		t.Errorf("Expected mean over available records 0.3, got %f", trend[Joy])
	}
}

func TestHistory_DominantSequenceEarlyStop(t *testing.T) {
	h := NewHistory(10)
	h.Add(recordWith(Joy, 0.9))
	h.Add(recordWith(Sadness, 0.9))

	count := 0
	for range h.DominantSequence() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Expected early break after 1, got %d", count)
	}
}

func TestTopTrend(t *testing.T) {
	trend := map[Label]float64{
		Joy:        0.8,
		Excitement: 0.6,
		Interest:   0.6,
		Sadness:    0.1,
	}

	top := TopTrend(trend, 3)
	if len(top) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(top))
	}
	if top[0].Label != Joy {
		t.Errorf("Expected joy first, got %s", top[0].Label)
	}
	// Equal scores order lexically.
	if top[1].Label != Excitement || top[2].Label != Interest {
		t.Errorf("Expected excitement then interest, got %s then %s", top[1].Label, top[2].Label)
	}
}
