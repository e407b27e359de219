package timing

import (
	"errors"
	"strings"
	"testing"

	"video-factory/stage"
	"video-factory/types"
)

func scene(ordinal int, narration string) types.Scene {
	return types.Scene{
		Ordinal:      ordinal,
		ID:           types.SceneID(ordinal),
		Narration:    narration,
		VisualPrompt: "x",
		Duration:     estimate(narration),
	}
}

func estimate(narration string) float64 {
	return float64(len(strings.Fields(narration))) / 2
}

func TestAlignKeepsMarkerTimings(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{scene(1, "Hello world. This is a test.")}
	markers := []types.TimingMarker{
		{Start: 0, End: 2.0, Text: "Hello world."},
		{Start: 2.0, End: 4.0, Text: "This is a test."},
	}

	cues, err := Align(scenes, markers, DefaultPolicy())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2", len(cues))
	}
	for i, want := range markers {
		got := cues[i]
		if got.Index != i+1 {
			t.Errorf("cue %d: index %d, want %d", i, got.Index, i+1)
		}
		if got.Start != want.Start || got.End != want.End {
			t.Errorf("cue %d: span [%.2f, %.2f], want [%.2f, %.2f]", i, got.Start, got.End, want.Start, want.End)
		}
		if got.Text != want.Text {
			t.Errorf("cue %d: text %q, want %q", i, got.Text, want.Text)
		}
		if got.LowConfidence {
			t.Errorf("cue %d flagged low confidence on an exact match", i)
		}
	}
}

func TestAlignRejectsInconsistentMarkers(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{scene(1, "Some narration text.")}
	cases := []struct {
		name    string
		markers []types.TimingMarker
	}{
		{"negative start", []types.TimingMarker{{Start: -1, End: 2, Text: "a"}}},
		{"end before start", []types.TimingMarker{{Start: 3, End: 2, Text: "a"}}},
		{"zero span", []types.TimingMarker{{Start: 2, End: 2, Text: "a"}}},
		{"start regression", []types.TimingMarker{
			{Start: 2, End: 4, Text: "a"},
			{Start: 1, End: 5, Text: "b"},
		}},
		{"overlap", []types.TimingMarker{
			{Start: 0, End: 3, Text: "a"},
			{Start: 2, End: 5, Text: "b"},
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Align(scenes, tc.markers, DefaultPolicy())
			var tie *stage.TimingInconsistencyError
			if !errors.As(err, &tie) {
				t.Fatalf("got %v, want TimingInconsistencyError", err)
			}
		})
	}
}

func TestAlignSplitsOverBudget(t *testing.T) {
	t.Parallel()
	text := "alpha beta, gamma delta"
	scenes := []types.Scene{scene(1, text)}
	markers := []types.TimingMarker{{Start: 0, End: 4.0, Text: text}}
	p := Policy{MaxCueChars: 12, MinCueDuration: 0.7, DriftTolerance: 48}

	cues, err := Align(scenes, markers, p)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2: %+v", len(cues), cues)
	}

	// Split halves partition the original span with no gap or overlap.
	if cues[0].Start != 0 || cues[1].End != 4.0 {
		t.Errorf("outer bounds moved: [%.2f, %.2f]", cues[0].Start, cues[1].End)
	}
	if cues[0].End != cues[1].Start {
		t.Errorf("gap between halves: %.3f vs %.3f", cues[0].End, cues[1].Start)
	}
	for i, c := range cues {
		if len(c.Text) > p.MaxCueChars {
			t.Errorf("cue %d still over budget: %q", i, c.Text)
		}
		if c.End <= c.Start {
			t.Errorf("cue %d has empty span", i)
		}
	}

	// No words lost to the split.
	joined := types.NormalizeText(strings.Join([]string{cues[0].Text, cues[1].Text}, " "))
	if joined != text {
		t.Errorf("split dropped content: %q != %q", joined, text)
	}
}

func TestAlignMergesShortCues(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{scene(1, "Hi. Welcome back everyone.")}
	markers := []types.TimingMarker{
		{Start: 0, End: 0.3, Text: "Hi."},
		{Start: 0.3, End: 2.3, Text: "Welcome back everyone."},
	}

	cues, err := Align(scenes, markers, DefaultPolicy())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("got %d cues, want 1 merged: %+v", len(cues), cues)
	}
	if cues[0].Text != "Hi. Welcome back everyone." {
		t.Errorf("merged text = %q", cues[0].Text)
	}
	if cues[0].Start != 0 || cues[0].End != 2.3 {
		t.Errorf("merged span [%.2f, %.2f], want [0, 2.3]", cues[0].Start, cues[0].End)
	}
	if cues[0].Index != 1 {
		t.Errorf("merged cue index %d, want 1", cues[0].Index)
	}
}

func TestAlignFlagsDriftedMarkers(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{scene(1, "completely different words over here in the script.")}
	markers := []types.TimingMarker{{Start: 0, End: 3, Text: "unrelated spoken content"}}

	cues, err := Align(scenes, markers, DefaultPolicy())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("got %d cues, want 1", len(cues))
	}
	if !cues[0].LowConfidence {
		t.Error("drifted marker not flagged low confidence")
	}
	if cues[0].Start != 0 || cues[0].End != 3 {
		t.Errorf("drifted cue lost its marker timing: [%.2f, %.2f]", cues[0].Start, cues[0].End)
	}
}

func TestAlignSkipsEmptyMarkerText(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{scene(1, "Only one line here.")}
	markers := []types.TimingMarker{
		{Start: 0, End: 1, Text: "   "},
		{Start: 1, End: 3, Text: "Only one line here."},
	}

	cues, err := Align(scenes, markers, DefaultPolicy())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("got %d cues, want 1", len(cues))
	}
	if cues[0].Text != "Only one line here." {
		t.Errorf("cue text = %q", cues[0].Text)
	}
}

func TestAlignIndicesSequential(t *testing.T) {
	t.Parallel()
	scenes := []types.Scene{
		scene(1, "First sentence of the story."),
		scene(2, "Second sentence follows it. Third closes the arc."),
	}
	markers := []types.TimingMarker{
		{Start: 0, End: 2, Text: "First sentence of the story."},
		{Start: 2, End: 4, Text: "Second sentence follows it."},
		{Start: 4, End: 6, Text: "Third closes the arc."},
	}

	cues, err := Align(scenes, markers, DefaultPolicy())
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("got %d cues, want 3", len(cues))
	}
	for i, c := range cues {
		if c.Index != i+1 {
			t.Errorf("cue %d has index %d", i, c.Index)
		}
		if i > 0 && c.Start < cues[i-1].End {
			t.Errorf("cue %d overlaps predecessor", i)
		}
		if c.LowConfidence {
			t.Errorf("cue %d flagged low confidence on matching narration", i)
		}
	}
}
