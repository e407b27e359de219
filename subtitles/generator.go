package subtitles

import (
	"context"
	"fmt"
	"log"
	"os"

	"video-factory/stage"
	"video-factory/types"
)

// Generator writes aligned cues to an SRT file
type Generator struct{}

// New creates a subtitle Generator
func New() *Generator {
	return &Generator{}
}

func (g *Generator) Version() string { return "srt-v1" }

// Generate renders and writes the cue list. Empty cue lists are invalid:
// alignment upstream always yields at least one cue for non-empty narration.
func (g *Generator) Generate(ctx context.Context, cues []types.SubtitleCue, outPath string) error {
	if len(cues) == 0 {
		return stage.Invalid("subtitles", fmt.Errorf("no cues to write"))
	}
	if err := os.WriteFile(outPath, []byte(Render(cues)), 0644); err != nil {
		return stage.Terminal("subtitles", fmt.Errorf("write srt: %w", err))
	}
	log.Printf("[subtitles] ✅ %d cues written: %s", len(cues), outPath)
	return nil
}
