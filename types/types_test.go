package types

import (
	"testing"
	"time"
)

func TestSceneID(t *testing.T) {
	t.Parallel()
	cases := map[int]string{1: "scene-001", 12: "scene-012", 123: "scene-123", 1234: "scene-1234"}
	for ordinal, want := range cases {
		if got := SceneID(ordinal); got != want {
			t.Errorf("SceneID(%d) = %q, want %q", ordinal, got, want)
		}
	}
}

func TestSceneValidate(t *testing.T) {
	t.Parallel()
	good := Scene{Ordinal: 1, ID: "scene-001", Narration: "Hello.", VisualPrompt: "a hand waving", Duration: 2.5}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid scene rejected: %v", err)
	}

	bad := []Scene{
		{Ordinal: 1, Narration: " ", VisualPrompt: "x", Duration: 1},
		{Ordinal: 1, Narration: "x", VisualPrompt: "", Duration: 1},
		{Ordinal: 1, Narration: "x", VisualPrompt: "y", Duration: 0},
		{Ordinal: 1, Narration: "x", VisualPrompt: "y", Duration: -3},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: invalid scene accepted", i)
		}
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"The Quick Brown Fox", 30, "the-quick-brown-fox"},
		{"Hello, World! 2024", 30, "hello-world-2024"},
		{"   --- !!! ---   ", 30, "run"},
		{"", 10, "run"},
		{"a very long prompt about the history of computing", 10, "a-very-lon"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in, tc.n); got != tc.want {
			t.Errorf("Slug(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestRunID(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)
	got := RunID(now, "Space Exploration History")
	want := "20240315-093045-space-exploration-history"
	if got != want {
		t.Fatalf("RunID = %q, want %q", got, want)
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"  hello   world  ": "hello world",
		"one\ntwo\t three":  "one two three",
		"already normal":    "already normal",
		"":                  "",
		"\n\t ":             "",
	}
	for in, want := range cases {
		if got := NormalizeText(in); got != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordAndFailedStages(t *testing.T) {
	t.Parallel()
	run := &PipelineRun{}
	run.RecordStage("script", StageCompleted, nil)
	run.RecordStage("visuals", StageFailed, errFake("boom"))
	run.RecordStage("subtitles", StageSkipped, nil)

	failed := run.FailedStages()
	if len(failed) != 1 || failed[0] != "visuals" {
		t.Fatalf("FailedStages = %v, want [visuals]", failed)
	}
	if run.Stages["visuals"].Error != "boom" {
		t.Errorf("failure detail not recorded: %+v", run.Stages["visuals"])
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }
