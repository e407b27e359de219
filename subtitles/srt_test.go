package subtitles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"video-factory/types"
)

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()
	cases := map[float64]string{
		0:        "00:00:00,000",
		1.5:      "00:00:01,500",
		61.042:   "00:01:01,042",
		3599.999: "00:59:59,999",
		3661.25:  "01:01:01,250",
		-2:       "00:00:00,000",
		0.0004:   "00:00:00,000",
	}
	for in, want := range cases {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderLayout(t *testing.T) {
	t.Parallel()
	cues := []types.SubtitleCue{
		{Index: 1, Start: 0, End: 2.5, Text: "Hello world."},
		{Index: 2, Start: 2.5, End: 5, Text: "This is a test."},
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello world.\n" +
		"\n" +
		"2\n00:00:02,500 --> 00:00:05,000\nThis is a test.\n"
	if got := Render(cues); got != want {
		t.Errorf("Render mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderEmpty(t *testing.T) {
	t.Parallel()
	if got := Render(nil); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}
}

func TestGeneratorWritesFile(t *testing.T) {
	t.Parallel()
	g := New()
	path := filepath.Join(t.TempDir(), "subtitles.srt")
	cues := []types.SubtitleCue{{Index: 1, Start: 0, End: 1, Text: "Hi."}}

	if err := g.Generate(context.Background(), cues, path); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != Render(cues) {
		t.Errorf("file content %q differs from rendered cues", data)
	}
}

func TestGeneratorRejectsEmptyCues(t *testing.T) {
	t.Parallel()
	g := New()
	path := filepath.Join(t.TempDir(), "subtitles.srt")
	if err := g.Generate(context.Background(), nil, path); err == nil {
		t.Fatal("empty cue list accepted")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("file written for empty cue list")
	}
}
