package types

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Scene is one narrated, visually-illustrated segment of the script
type Scene struct {
	Ordinal      int     `json:"ordinal"`
	ID           string  `json:"id"` // "scene-001"
	Narration    string  `json:"narration"`
	VisualPrompt string  `json:"visual_prompt"`
	Duration     float64 `json:"duration"` // estimated seconds, positive
}

// SceneID formats the canonical scene id for a 1-based ordinal
func SceneID(ordinal int) string {
	return fmt.Sprintf("scene-%03d", ordinal)
}

// Validate checks the scene invariants
func (s Scene) Validate() error {
	if strings.TrimSpace(s.Narration) == "" {
		return fmt.Errorf("scene %d: empty narration", s.Ordinal)
	}
	if strings.TrimSpace(s.VisualPrompt) == "" {
		return fmt.Errorf("scene %d: empty visual prompt", s.Ordinal)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("scene %d: non-positive duration %.2f", s.Ordinal, s.Duration)
	}
	return nil
}

// TimingMarker is one spoken span of the voiceover audio
type TimingMarker struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SubtitleCue is one timed subtitle display unit
type SubtitleCue struct {
	Index         int     `json:"index"` // 1-based, sequential
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Text          string  `json:"text"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// ArtifactRef points at one produced artifact by logical role
type ArtifactRef struct {
	Role string `json:"role"`
	Path string `json:"path"`
}

// RunStatus is the terminal (or current) state of a pipeline run
type RunStatus string

const (
	StatusPending         RunStatus = "pending"
	StatusRunning         RunStatus = "running"
	StatusCompleted       RunStatus = "completed"
	StatusPartiallyFailed RunStatus = "partially_failed"
	StatusFailed          RunStatus = "failed"
)

// StageState is the outcome of one stage within a run
type StageState string

const (
	StageCompleted StageState = "completed"
	StageCacheHit  StageState = "cache_hit"
	StageFailed    StageState = "failed"
	StageSkipped   StageState = "skipped"
)

// StageOutcome records how one stage ended, with failure detail when it failed
type StageOutcome struct {
	Stage string     `json:"stage"`
	State StageState `json:"state"`
	Error string     `json:"error,omitempty"`
}

// RunConfig is the run-wide immutable configuration snapshot
type RunConfig struct {
	Resolution string  `json:"resolution"`
	FPS        int     `json:"fps"`
	Voice      string  `json:"voice"`
	Language   string  `json:"language"`
	Style      string  `json:"style"`
	MusicTrack string  `json:"music_track,omitempty"`
	Subtitles  bool    `json:"subtitles"`
	MusicVol   float64 `json:"music_volume"`
	VoiceVol   float64 `json:"voice_volume"`
}

// PipelineRun tracks the full state of one pipeline run
type PipelineRun struct {
	ID          string                  `json:"run_id"`
	StartedAt   string                  `json:"started_at"`
	CompletedAt string                  `json:"completed_at,omitempty"`
	Dir         string                  `json:"dir"`
	Config      RunConfig               `json:"config"`
	Scenes      []Scene                 `json:"scenes,omitempty"`
	Stages      map[string]StageOutcome `json:"stages"`
	Artifacts   []ArtifactRef           `json:"artifacts,omitempty"`
	Status      RunStatus               `json:"status"`
	FinalVideo  string                  `json:"final_video,omitempty"`
}

// RecordStage notes a stage outcome on the run
func (r *PipelineRun) RecordStage(stage string, state StageState, err error) {
	if r.Stages == nil {
		r.Stages = make(map[string]StageOutcome)
	}
	out := StageOutcome{Stage: stage, State: state}
	if err != nil {
		out.Error = err.Error()
	}
	r.Stages[stage] = out
}

// FailedStages lists every stage recorded as failed, for user-facing reporting
func (r *PipelineRun) FailedStages() []string {
	var failed []string
	for name, out := range r.Stages {
		if out.State == StageFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// RunID builds the run identity: timestamp plus a slug from the input text
func RunID(now time.Time, input string) string {
	return now.Format("20060102-150405") + "-" + Slug(input, 30)
}

// Slug reduces text to a safe lowercase filename fragment of at most n chars
func Slug(text string, n int) string {
	if len(text) > n {
		text = text[:n]
	}
	var b strings.Builder
	for _, c := range text {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			b.WriteRune(unicode.ToLower(c))
		case c == ' ' || c == '-':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "run"
	}
	return slug
}

// NormalizeText collapses all whitespace runs to single spaces and trims.
// Used both for cache fingerprints and for the scene-concatenation invariant:
// joined scene narration must equal the source script under this normalization.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
