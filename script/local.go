package script

import (
	"context"
	"fmt"
	"strings"

	"video-factory/stage"
	"video-factory/types"
)

// Splitter is the deterministic local processor: it segments the input at
// sentence boundaries with no rewriting, so concatenated scene narration
// always reproduces the source text modulo whitespace.
type Splitter struct {
	TargetSceneSec float64 // upper bound per scene before a new one starts
}

// NewSplitter creates a local splitter targeting scenes under maxSec seconds
func NewSplitter(maxSec float64) *Splitter {
	if maxSec <= 0 {
		maxSec = 10
	}
	return &Splitter{TargetSceneSec: maxSec}
}

func (s *Splitter) Version() string { return "local-v1" }

// Process groups sentences into scenes of at most TargetSceneSec estimated
// spoken seconds each
func (s *Splitter) Process(ctx context.Context, in stage.ScriptInput) ([]types.Scene, error) {
	text := types.NormalizeText(in.Text)
	if text == "" {
		return nil, stage.Invalid("script", fmt.Errorf("empty input text"))
	}

	sentences := splitSentences(text)
	var scenes []types.Scene
	var current []string
	var currentSec float64

	flush := func() {
		if len(current) == 0 {
			return
		}
		narration := strings.Join(current, " ")
		ordinal := len(scenes) + 1
		scenes = append(scenes, types.Scene{
			Ordinal:      ordinal,
			ID:           types.SceneID(ordinal),
			Narration:    narration,
			VisualPrompt: visualPromptFor(narration, in.Style),
			Duration:     estimateDuration(narration),
		})
		current = current[:0]
		currentSec = 0
	}

	for _, sent := range sentences {
		sec := estimateDuration(sent)
		if currentSec > 0 && currentSec+sec > s.TargetSceneSec {
			flush()
		}
		current = append(current, sent)
		currentSec += sec
	}
	flush()

	return scenes, nil
}

// splitSentences cuts normalized text after terminal punctuation. Boundaries
// fall only at existing whitespace, so joining the pieces with single spaces
// restores the input exactly.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// consume closing quotes and repeated punctuation
			j := i + 1
			for j < len(text) && (text[j] == '.' || text[j] == '!' || text[j] == '?' || text[j] == '"' || text[j] == '\'') {
				j++
			}
			if j >= len(text) {
				out = append(out, strings.TrimSpace(text[start:]))
				return out
			}
			if text[j] == ' ' {
				out = append(out, strings.TrimSpace(text[start:j]))
				start = j + 1
				i = j
			}
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func visualPromptFor(narration, style string) string {
	subject := narration
	if words := strings.Fields(subject); len(words) > 12 {
		subject = strings.Join(words[:12], " ")
	}
	if style == "" {
		style = "clean, professional, cinematic lighting"
	}
	return fmt.Sprintf("%s, illustrating: %s", style, subject)
}
