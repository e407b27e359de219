package voiceover

import (
	"math"
	"testing"

	"video-factory/types"
)

func TestMarkersScaleToMeasuredDuration(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{
		{Ordinal: 1, Narration: "First part.", Duration: 2},
		{Ordinal: 2, Narration: "Second part.", Duration: 4},
		{Ordinal: 3, Narration: "Third part.", Duration: 2},
	}

	// Estimates sum to 8s but the audio measured 12s.
	markers := Markers(scenes, 12)
	if len(markers) != 3 {
		t.Fatalf("got %d markers, want 3", len(markers))
	}

	if markers[0].Start != 0 {
		t.Errorf("first marker starts at %.3f", markers[0].Start)
	}
	if got := markers[len(markers)-1].End; math.Abs(got-12) > 1e-9 {
		t.Errorf("last marker ends at %.3f, want 12", got)
	}
	for i, m := range markers {
		if m.End <= m.Start {
			t.Errorf("marker %d has empty span [%.3f, %.3f]", i, m.Start, m.End)
		}
		if i > 0 && m.Start != markers[i-1].End {
			t.Errorf("marker %d does not abut its predecessor", i)
		}
		if m.Text != scenes[i].Narration {
			t.Errorf("marker %d text %q", i, m.Text)
		}
	}

	// Proportionality: scene 2 had half the estimated time, so it gets half
	// the measured time.
	if got := markers[1].End - markers[1].Start; math.Abs(got-6) > 1e-9 {
		t.Errorf("middle span %.3f, want 6", got)
	}
}

func TestMarkersDegenerateInputs(t *testing.T) {
	t.Parallel()
	if m := Markers(nil, 10); m != nil {
		t.Errorf("markers from no scenes: %v", m)
	}
	scenes := []types.Scene{{Ordinal: 1, Narration: "x", Duration: 0}}
	if m := Markers(scenes, 10); m != nil {
		t.Errorf("markers from zero estimates: %v", m)
	}
	scenes[0].Duration = 2
	if m := Markers(scenes, 0); m != nil {
		t.Errorf("markers from zero total: %v", m)
	}
}
