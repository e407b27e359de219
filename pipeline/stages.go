package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"video-factory/cache"
	"video-factory/scheduler"
	"video-factory/stage"
	"video-factory/store"
	"video-factory/timing"
	"video-factory/types"
)

// lookup consults the cache when enabled. Hits and misses are
// indistinguishable to downstream stages: a hit is materialized at the same
// path a fresh invocation would have written.
func (o *Orchestrator) lookup(fp, dest string) bool {
	if o.cache == nil {
		return false
	}
	if _, ok := o.cache.Lookup(fp); !ok {
		return false
	}
	if err := o.cache.CopyTo(fp, dest); err != nil {
		log.Printf("[cache] materialize %s failed: %v, treating as miss", fp[:12], err)
		return false
	}
	return true
}

func (o *Orchestrator) cacheStore(fp, stageID, path string) {
	if o.cache == nil {
		return
	}
	if _, err := o.cache.Store(fp, stageID, path); err != nil {
		log.Printf("[cache] store %s: %v", fp[:12], err)
	}
}

func (o *Orchestrator) runScript(ctx context.Context, st *store.Store, run *types.PipelineRun, in Input) ([]types.Scene, error) {
	input := stage.ScriptInput{
		Text:     in.Text,
		IsScript: in.IsScript,
		Style:    o.tmpl.Visuals.Style,
		Language: in.Language,
	}
	fp := cache.Fingerprint("script", o.adapters.Script.Version(), map[string]any{
		"text":   types.NormalizeText(in.Text),
		"script": in.IsScript,
		"style":  types.NormalizeText(input.Style),
		"lang":   in.Language,
	})

	path, err := st.Reserve(store.RoleScript)
	if err != nil {
		return nil, stage.Terminal("script", err)
	}

	if o.lookup(fp, path) {
		scenes, err := loadScenes(path)
		if err == nil {
			log.Printf("[pipeline] [script] cache hit: %d scenes", len(scenes))
			run.RecordStage("script", types.StageCacheHit, nil)
			return scenes, nil
		}
		log.Printf("[cache] cached script unreadable: %v, regenerating", err)
	}

	var scenes []types.Scene
	err = o.sched.Submit(ctx, scheduler.Task{
		Name:    "script",
		Class:   ClassScript,
		Timeout: o.cfg.StageTimeout(),
		Do: func(ctx context.Context) error {
			out, err := o.adapters.Script.Process(ctx, input)
			if err != nil {
				return err
			}
			scenes = out
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(scenes, "", "  ")
	if err != nil {
		return nil, stage.Terminal("script", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, stage.Terminal("script", err)
	}
	if ref, err := st.Finalize(store.RoleScript); err == nil {
		run.Artifacts = append(run.Artifacts, ref)
	}
	o.cacheStore(fp, "script", path)
	run.RecordStage("script", types.StageCompleted, nil)
	return scenes, nil
}

// runVisualsAndVoiceover schedules every scene image and the whole-script
// voiceover as one batch; the two stages have no dependency edge between
// them. Results come back index-aligned: 0..n-1 visuals, n voiceover.
func (o *Orchestrator) runVisualsAndVoiceover(ctx context.Context, st *store.Store, run *types.PipelineRun, scenes []types.Scene) (images []string, voice stage.VoiceoverResult, visualsErr, voiceErr error) {
	images = make([]string, len(scenes))
	visualHits := 0
	var tasks []scheduler.Task
	taskErrIdx := make([]int, 0, len(scenes)+1) // batch index → scene ordinal (or -1 for voiceover)

	for i, scene := range scenes {
		dest, err := st.Reserve(store.SceneImageRole(scene.Ordinal))
		if err != nil {
			visualsErr = stage.Terminal("visuals", err)
			continue
		}
		images[i] = dest

		fp := cache.Fingerprint("visuals", o.adapters.Visuals.Version(), map[string]any{
			"prompt": types.NormalizeText(scene.VisualPrompt),
			"style":  types.NormalizeText(o.tmpl.Visuals.Style),
			"size":   o.tmpl.Video.Resolution,
		})
		if o.lookup(fp, dest) {
			visualHits++
			continue
		}

		scene, dest, fp := scene, dest, fp
		tasks = append(tasks, scheduler.Task{
			Name:    scene.ID + "-image",
			Class:   ClassImageGen,
			Timeout: o.cfg.StageTimeout(),
			Do: func(ctx context.Context) error {
				if err := o.adapters.Visuals.Generate(ctx, scene, dest); err != nil {
					return err
				}
				o.cacheStore(fp, "visuals", dest)
				return nil
			},
		})
		taskErrIdx = append(taskErrIdx, scene.Ordinal)
	}

	audioPath, reserveErr := st.Reserve(store.RoleVoiceover)
	timingPath, timingReserveErr := st.Reserve(store.RoleTiming)
	if reserveErr != nil || timingReserveErr != nil {
		voiceErr = stage.Terminal("voiceover", errors.Join(reserveErr, timingReserveErr))
	}

	voiceFP, timingFP := o.voiceoverFingerprints(run, scenes)
	voiceFromCache := false
	if voiceErr == nil && o.lookup(voiceFP, audioPath) && o.lookup(timingFP, timingPath) {
		cached, err := loadVoiceover(audioPath, timingPath)
		if err == nil {
			voice = cached
			voiceFromCache = true
			log.Printf("[pipeline] [voiceover] cache hit: %.1fs audio", voice.Duration)
		} else {
			log.Printf("[cache] cached voiceover unreadable: %v, regenerating", err)
		}
	}
	if voiceErr == nil && !voiceFromCache {
		tasks = append(tasks, scheduler.Task{
			Name:    "voiceover",
			Class:   ClassTTS,
			Timeout: o.cfg.StageTimeout(),
			Do: func(ctx context.Context) error {
				result, err := o.adapters.Voiceover.Generate(ctx, scenes, audioPath)
				if err != nil {
					return err
				}
				voice = result
				return nil
			},
		})
		taskErrIdx = append(taskErrIdx, -1)
	}

	results := o.sched.SubmitAll(ctx, tasks)

	var visualFailures []error
	for i, err := range results {
		if err == nil {
			continue
		}
		if taskErrIdx[i] < 0 {
			voiceErr = err
		} else {
			visualFailures = append(visualFailures, fmt.Errorf("scene %d: %w", taskErrIdx[i], err))
		}
	}
	if visualsErr == nil && len(visualFailures) > 0 {
		visualsErr = errors.Join(visualFailures...)
	}

	switch {
	case visualsErr != nil:
		run.RecordStage("visuals", types.StageFailed, visualsErr)
	case visualHits == len(scenes):
		run.RecordStage("visuals", types.StageCacheHit, nil)
	default:
		run.RecordStage("visuals", types.StageCompleted, nil)
		for _, scene := range scenes {
			if ref, err := st.Finalize(store.SceneImageRole(scene.Ordinal)); err == nil {
				run.Artifacts = append(run.Artifacts, ref)
			}
		}
	}

	switch {
	case voiceErr != nil:
		run.RecordStage("voiceover", types.StageFailed, voiceErr)
	case voiceFromCache:
		run.RecordStage("voiceover", types.StageCacheHit, nil)
	default:
		if err := writeTiming(timingPath, voice.Markers); err != nil {
			log.Printf("[pipeline] Warning: could not save timing markers: %v", err)
		}
		o.cacheStore(voiceFP, "voiceover", audioPath)
		o.cacheStore(timingFP, "voiceover-timing", timingPath)
		run.RecordStage("voiceover", types.StageCompleted, nil)
		if ref, err := st.Finalize(store.RoleVoiceover); err == nil {
			run.Artifacts = append(run.Artifacts, ref)
		}
	}
	return images, voice, visualsErr, voiceErr
}

func (o *Orchestrator) voiceoverFingerprints(run *types.PipelineRun, scenes []types.Scene) (audio, markers string) {
	var narration []string
	var estimates []float64
	for _, s := range scenes {
		narration = append(narration, s.Narration)
		estimates = append(estimates, s.Duration)
	}
	input := map[string]any{
		"narration": types.NormalizeText(fmt.Sprint(narration)),
		"estimates": estimates,
		"voice":     run.Config.Voice,
		"lang":      run.Config.Language,
	}
	ver := o.adapters.Voiceover.Version()
	return cache.Fingerprint("voiceover", ver, input), cache.Fingerprint("voiceover-timing", ver, input)
}

// runSubtitles aligns timing markers with the scene narration and writes the
// SRT file. Any failure here fails the subtitle stage only; the caller
// proceeds to assembly without burned-in subtitles.
func (o *Orchestrator) runSubtitles(ctx context.Context, st *store.Store, run *types.PipelineRun, scenes []types.Scene, markers []types.TimingMarker) string {
	cues, err := timing.Align(scenes, markers, o.subtitlePolicy())
	if err != nil {
		log.Printf("[pipeline] [subtitles] alignment failed: %v, continuing without subtitles", err)
		run.RecordStage("subtitles", types.StageFailed, err)
		return ""
	}

	path, err := st.Reserve(store.RoleSubtitles)
	if err != nil {
		run.RecordStage("subtitles", types.StageFailed, err)
		return ""
	}

	fp := cache.Fingerprint("subtitles", o.adapters.Subtitles.Version(), cues)
	if o.lookup(fp, path) {
		run.RecordStage("subtitles", types.StageCacheHit, nil)
		return path
	}

	err = o.sched.Submit(ctx, scheduler.Task{
		Name:    "subtitles",
		Class:   ClassSubtitles,
		Timeout: o.cfg.StageTimeout(),
		Do: func(ctx context.Context) error {
			return o.adapters.Subtitles.Generate(ctx, cues, path)
		},
	})
	if err != nil {
		log.Printf("[pipeline] [subtitles] failed: %v, continuing without subtitles", err)
		run.RecordStage("subtitles", types.StageFailed, err)
		return ""
	}
	o.cacheStore(fp, "subtitles", path)
	run.RecordStage("subtitles", types.StageCompleted, nil)
	if ref, err := st.Finalize(store.RoleSubtitles); err == nil {
		run.Artifacts = append(run.Artifacts, ref)
	}
	return path
}

type assembleInput struct {
	scenes       []types.Scene
	images       []string
	durations    []float64
	voicePath    string
	subtitlePath string
	musicPath    string
	outputPath   string
}

func (o *Orchestrator) runAssemble(ctx context.Context, st *store.Store, run *types.PipelineRun, in assembleInput) (string, error) {
	outputPath := in.outputPath
	if outputPath == "" {
		reserved, err := st.Reserve(store.RoleFinalVideo)
		if err != nil {
			run.RecordStage("assemble", types.StageFailed, err)
			return "", err
		}
		outputPath = reserved
	}

	// The fingerprint must pin the content feeding the cut, not just its
	// shape: two scripts with identical scene durations still yield
	// different videos.
	sceneKeys := make([]map[string]string, len(in.scenes))
	for i, s := range in.scenes {
		sceneKeys[i] = map[string]string{
			"narration": types.NormalizeText(s.Narration),
			"prompt":    types.NormalizeText(s.VisualPrompt),
		}
	}
	fp := cache.Fingerprint("assemble", o.adapters.Assembler.Version(), map[string]any{
		"visuals":   o.adapters.Visuals.Version(),
		"voiceover": o.adapters.Voiceover.Version(),
		"scenes":    sceneKeys,
		"voice_id":  run.Config.Voice,
		"lang":      run.Config.Language,
		"durations": in.durations,
		"voice":     in.voicePath != "",
		"subtitles": in.subtitlePath != "",
		"music":     in.musicPath != "",
		"template":  o.tmpl,
	})
	if o.lookup(fp, outputPath) {
		run.RecordStage("assemble", types.StageCacheHit, nil)
		return outputPath, nil
	}

	var finalPath string
	err := o.sched.Submit(ctx, scheduler.Task{
		Name:    "assemble",
		Class:   ClassAssemble,
		Timeout: o.cfg.StageTimeout(),
		Do: func(ctx context.Context) error {
			out, err := o.adapters.Assembler.Assemble(ctx, stage.AssemblyInput{
				WorkDir:       st.Dir(),
				SceneImages:   in.images,
				Durations:     in.durations,
				VoiceoverPath: in.voicePath,
				SubtitlePath:  in.subtitlePath,
				MusicPath:     in.musicPath,
				OutputPath:    outputPath,
			})
			if err != nil {
				return err
			}
			finalPath = out
			return nil
		},
	})
	if err != nil {
		run.RecordStage("assemble", types.StageFailed, err)
		return "", err
	}
	o.cacheStore(fp, "assemble", finalPath)
	run.RecordStage("assemble", types.StageCompleted, nil)
	if in.outputPath == "" {
		if ref, err := st.Finalize(store.RoleFinalVideo); err == nil {
			run.Artifacts = append(run.Artifacts, ref)
		}
	}
	return finalPath, nil
}

func loadScenes(path string) ([]types.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenes []types.Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, errors.New("cached script holds no scenes")
	}
	return scenes, nil
}

func loadVoiceover(audioPath, timingPath string) (stage.VoiceoverResult, error) {
	data, err := os.ReadFile(timingPath)
	if err != nil {
		return stage.VoiceoverResult{}, err
	}
	var markers []types.TimingMarker
	if err := json.Unmarshal(data, &markers); err != nil {
		return stage.VoiceoverResult{}, err
	}
	if len(markers) == 0 {
		return stage.VoiceoverResult{}, errors.New("cached timing holds no markers")
	}
	return stage.VoiceoverResult{
		AudioPath: audioPath,
		Duration:  markers[len(markers)-1].End,
		Markers:   markers,
	}, nil
}

func writeTiming(path string, markers []types.TimingMarker) error {
	data, err := json.MarshalIndent(markers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
