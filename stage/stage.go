// Package stage defines the adapter contracts the orchestrator drives and the
// classified error taxonomy shared across the pipeline.
package stage

import (
	"context"

	"video-factory/types"
)

// ScriptInput is the raw input handed to a ScriptProcessor
type ScriptInput struct {
	Text     string // prompt text or full script content
	IsScript bool   // true when Text is a prepared script, not a prompt
	Style    string // template style descriptor, folded into visual prompts
	Language string
}

// VoiceoverResult is what a VoiceoverGenerator produces for the full narration
type VoiceoverResult struct {
	AudioPath string               `json:"audio_path"`
	Duration  float64              `json:"duration"`
	Markers   []types.TimingMarker `json:"markers"`
}

// AssemblyInput carries everything the Assembler needs to cut the final video
type AssemblyInput struct {
	WorkDir       string
	SceneImages   []string  // ordered, one per scene
	Durations     []float64 // seconds per scene, aligned with SceneImages
	VoiceoverPath string
	SubtitlePath  string // empty when subtitles are disabled or failed
	MusicPath     string // empty when no music track configured
	OutputPath    string
}

// ScriptProcessor turns raw text into an ordered scene list
type ScriptProcessor interface {
	Process(ctx context.Context, in ScriptInput) ([]types.Scene, error)
	Version() string
}

// VisualGenerator produces one image per scene
type VisualGenerator interface {
	Generate(ctx context.Context, scene types.Scene, outPath string) error
	Version() string
}

// VoiceoverGenerator speaks the full narration in one pass and reports one
// timing marker per scene
type VoiceoverGenerator interface {
	Generate(ctx context.Context, scenes []types.Scene, outPath string) (VoiceoverResult, error)
	Version() string
}

// SubtitleGenerator writes timed cues to a subtitle file
type SubtitleGenerator interface {
	Generate(ctx context.Context, cues []types.SubtitleCue, outPath string) error
	Version() string
}

// Assembler combines all produced artifacts into the final video
type Assembler interface {
	Assemble(ctx context.Context, in AssemblyInput) (string, error)
	Version() string
}
