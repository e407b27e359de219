// Package pipeline owns the dependency graph for one run: script processing,
// then visuals and voiceover concurrently, then subtitles gated on voiceover,
// then assembly over whatever succeeded.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"video-factory/cache"
	"video-factory/config"
	"video-factory/scheduler"
	"video-factory/stage"
	"video-factory/store"
	"video-factory/timing"
	"video-factory/types"
)

// Concurrency classes; external rate limits differ per provider so each class
// is bounded separately.
const (
	ClassScript    = "script"
	ClassImageGen  = "image-generation"
	ClassTTS       = "tts"
	ClassSubtitles = "subtitles"
	ClassAssemble  = "assemble"
)

// Adapters bundles the five stage implementations the orchestrator drives
type Adapters struct {
	Script    stage.ScriptProcessor
	Visuals   stage.VisualGenerator
	Voiceover stage.VoiceoverGenerator
	Subtitles stage.SubtitleGenerator
	Assembler stage.Assembler
}

// Input is one run's request
type Input struct {
	Text       string
	IsScript   bool
	Style      string
	Language   string
	Voice      string
	MusicTrack string // path to a music file, optional
	Subtitles  bool
	OutputPath string // overrides the default final-video location, optional
}

// Orchestrator sequences one run to completion or failure
type Orchestrator struct {
	cfg      *config.Config
	tmpl     config.Template
	cache    *cache.Cache // nil disables caching
	sched    *scheduler.Scheduler
	adapters Adapters
	now      func() time.Time
}

// New wires an orchestrator. cch may be nil to disable the cache.
func New(cfg *config.Config, tmpl config.Template, cch *cache.Cache, sched *scheduler.Scheduler, adapters Adapters) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		tmpl:     tmpl,
		cache:    cch,
		sched:    sched,
		adapters: adapters,
		now:      time.Now,
	}
}

// Run drives the full pipeline for one input. The returned run carries
// per-stage outcomes even when err is non-nil; err reports only run-level
// failures (validation, workspace setup), never stage-local ones.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*types.PipelineRun, error) {
	if types.NormalizeText(in.Text) == "" {
		return nil, &stage.ValidationError{Reason: "empty input text"}
	}

	runID := types.RunID(o.now(), in.Text)
	st, err := store.New(o.cfg.Paths.Output, runID)
	if err != nil {
		return nil, err
	}

	run := &types.PipelineRun{
		ID:        runID,
		StartedAt: o.now().UTC().Format(time.RFC3339),
		Dir:       st.Dir(),
		Status:    types.StatusRunning,
		Stages:    make(map[string]types.StageOutcome),
		Config: types.RunConfig{
			Resolution: o.tmpl.Video.Resolution,
			FPS:        o.tmpl.Video.FPS,
			Voice:      in.Voice,
			Language:   in.Language,
			Style:      in.Style,
			MusicTrack: in.MusicTrack,
			Subtitles:  in.Subtitles,
			MusicVol:   o.tmpl.Audio.MusicVolume,
			VoiceVol:   o.tmpl.Audio.VoiceVolume,
		},
	}
	defer o.saveState(st, run)

	log.Printf("[pipeline] 🎬 Run %s starting, output: %s", runID, st.Dir())

	// Stage 1: script processing. Everything depends on it; a failure here
	// skips the entire graph.
	scenes, err := o.runScript(ctx, st, run, in)
	if err != nil {
		run.RecordStage("script", types.StageFailed, err)
		o.skip(run, "visuals", "voiceover", "subtitles", "assemble")
		run.Status = types.StatusFailed
		return run, nil
	}
	run.Scenes = scenes

	// Music is an external selection, not a generated stage; stage it into
	// the run dir so the assembler and any re-run see a stable path.
	musicPath := o.stageMusic(st, run, in.MusicTrack)

	// Stage 2+3: per-scene visuals and whole-script voiceover share one
	// batch; they have no mutual dependency and run under separate
	// concurrency classes.
	images, voice, visualsErr, voiceErr := o.runVisualsAndVoiceover(ctx, st, run, scenes)

	// Stage 4: subtitles, gated on voiceover completion.
	subtitlePath := ""
	switch {
	case !in.Subtitles:
		run.RecordStage("subtitles", types.StageSkipped, nil)
	case voiceErr != nil:
		o.skip(run, "subtitles")
	default:
		subtitlePath = o.runSubtitles(ctx, st, run, scenes, voice.Markers)
	}

	// Stage 5: assembly over everything that succeeded. Scene visuals are
	// the one hard requirement; a lost voiceover still yields a video-only
	// output (with subtitles already skipped above).
	if visualsErr != nil {
		o.skip(run, "assemble")
		run.Status = types.StatusFailed
		run.CompletedAt = o.now().UTC().Format(time.RFC3339)
		return run, nil
	}

	// Clip durations follow the spoken audio when we have it, the script
	// estimates otherwise, so visuals stay in sync with narration.
	voicePath := ""
	durations := make([]float64, len(scenes))
	for i, s := range scenes {
		durations[i] = s.Duration
	}
	if voiceErr == nil {
		voicePath = voice.AudioPath
		for i, m := range voice.Markers {
			if i < len(durations) {
				durations[i] = m.End - m.Start
			}
		}
	}
	finalPath, assembleErr := o.runAssemble(ctx, st, run, assembleInput{
		scenes:       scenes,
		images:       images,
		durations:    durations,
		voicePath:    voicePath,
		subtitlePath: subtitlePath,
		musicPath:    musicPath,
		outputPath:   in.OutputPath,
	})
	if assembleErr != nil {
		run.Status = types.StatusFailed
		run.CompletedAt = o.now().UTC().Format(time.RFC3339)
		return run, nil
	}
	run.FinalVideo = finalPath

	run.Status = types.StatusCompleted
	if len(run.FailedStages()) > 0 {
		run.Status = types.StatusPartiallyFailed
		log.Printf("[pipeline] ⚠️  Run %s partially failed, failed stages: %v", runID, run.FailedStages())
	} else {
		log.Printf("[pipeline] ✅ Run %s complete: %s", runID, finalPath)
	}
	run.CompletedAt = o.now().UTC().Format(time.RFC3339)
	return run, nil
}

func (o *Orchestrator) skip(run *types.PipelineRun, stages ...string) {
	for _, s := range stages {
		run.RecordStage(s, types.StageSkipped, nil)
	}
}

func (o *Orchestrator) saveState(st *store.Store, run *types.PipelineRun) {
	path, err := st.Reserve(store.RoleState)
	if err != nil {
		return
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		log.Printf("[pipeline] Warning: could not marshal run state: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[pipeline] Warning: could not save run state: %v", err)
	}
}

// stageMusic copies the selected track into the run dir; a missing or
// unreadable track downgrades to a silent music bed rather than failing
func (o *Orchestrator) stageMusic(st *store.Store, run *types.PipelineRun, track string) string {
	if track == "" {
		return ""
	}
	dest, err := st.Reserve(store.RoleMusic)
	if err == nil {
		err = copyFile(track, dest)
	}
	if err != nil {
		log.Printf("[pipeline] Warning: music track %s unusable: %v, continuing without music", track, err)
		return ""
	}
	if ref, ferr := st.Finalize(store.RoleMusic); ferr == nil {
		run.Artifacts = append(run.Artifacts, ref)
	}
	return dest
}

func (o *Orchestrator) subtitlePolicy() timing.Policy {
	p := timing.Policy{
		MaxCueChars:    o.cfg.Subtitles.MaxCharsPerCue,
		MinCueDuration: o.cfg.Subtitles.MinCueSec,
		DriftTolerance: o.cfg.Subtitles.DriftTolerance,
	}
	if p.MaxCueChars <= 0 {
		p = timing.DefaultPolicy()
	}
	return p
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty file %s", src)
	}
	return os.WriteFile(dst, data, 0644)
}
