package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"video-factory/assemble"
	"video-factory/cache"
	"video-factory/config"
	"video-factory/pipeline"
	"video-factory/publish"
	"video-factory/scheduler"
	"video-factory/script"
	"video-factory/stage"
	"video-factory/subtitles"
	"video-factory/types"
	"video-factory/visuals"
	"video-factory/voiceover"
)

func main() {
	// Load .env (local dev only; CI injects real env vars)
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

type flags struct {
	prompt     string
	scriptPath string
	voice      string
	lang       string
	style      string
	music      string
	noSubs     bool
	output     string
	doPublish  bool
	configPath string
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "video-factory",
		Short:         "AI-powered video generation pipeline",
		Long:          "Generates videos from text prompts or scripts:\nscript processing → visuals + voiceover → subtitles → assembly",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "text prompt for video generation")
	cmd.Flags().StringVarP(&f.scriptPath, "script", "s", "", "path to script file")
	cmd.Flags().StringVar(&f.voice, "voice", "Fenrir", "voice name")
	cmd.Flags().StringVar(&f.lang, "lang", "en", "narration language")
	cmd.Flags().StringVar(&f.style, "style", "default", "video style template")
	cmd.Flags().StringVar(&f.music, "music", "", "path to a background music track")
	cmd.Flags().BoolVar(&f.noSubs, "no-subtitles", false, "disable subtitles")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&f.doPublish, "publish", false, "upload the final video to YouTube")
	cmd.Flags().StringVar(&f.configPath, "config", "config.yaml", "config file path")
	return cmd
}

func run(ctx context.Context, f flags) error {
	// Exactly one input source; this fails before any run dir exists.
	if (f.prompt == "") == (f.scriptPath == "") {
		return &stage.ValidationError{Reason: "exactly one of --prompt or --script is required"}
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}

	text := f.prompt
	isScript := false
	if f.scriptPath != "" {
		data, err := os.ReadFile(f.scriptPath)
		if err != nil {
			return &stage.ValidationError{Reason: fmt.Sprintf("read script: %v", err)}
		}
		text = string(data)
		isScript = true
	}

	tmpl, err := cfg.TemplateFor(f.style)
	if err != nil {
		return &stage.ValidationError{Reason: err.Error()}
	}
	if f.voice != "" {
		tmpl.Audio.Voice = f.voice
	}

	orch, err := buildOrchestrator(cfg, tmpl)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("🎬 Video Factory: AI Video Generation")
	started := time.Now()

	runResult, err := orch.Run(ctx, pipeline.Input{
		Text:       text,
		IsScript:   isScript,
		Style:      f.style,
		Language:   f.lang,
		Voice:      tmpl.Audio.Voice,
		MusicTrack: f.music,
		Subtitles:  !f.noSubs,
		OutputPath: f.output,
	})
	if err != nil {
		return err
	}

	report(runResult, time.Since(started))

	if f.doPublish && runResult.FinalVideo != "" {
		if err := publishRun(ctx, cfg, runResult); err != nil {
			return err
		}
	}

	if runResult.Status == types.StatusFailed {
		return fmt.Errorf("run %s failed, see %s", runResult.ID, runResult.Dir)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	// API keys resolve here once; no component reads the environment itself.
	cfg.GeminiAPIKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBase = os.Getenv("OPENAI_BASE_URL")
	return cfg, nil
}

func buildOrchestrator(cfg *config.Config, tmpl config.Template) (*pipeline.Orchestrator, error) {
	var processor stage.ScriptProcessor
	var err error
	switch cfg.Script.Processor {
	case "gemini":
		processor, err = script.NewGemini(cfg.GeminiAPIKey, cfg.Script.Model, cfg.Script.Temperature, cfg.Script.MaxTokens)
	case "openai":
		processor, err = script.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBase, cfg.Script.Model)
	default:
		processor = script.NewSplitter(10)
	}
	if err != nil {
		return nil, err
	}

	var visual stage.VisualGenerator
	if cfg.Visuals.Provider == "placeholder" {
		visual = visuals.NewPlaceholder(cfg.Visuals.Width, cfg.Visuals.Height)
	} else {
		visual = visuals.NewPollinations(tmpl.Visuals.Style, cfg.Visuals.Width, cfg.Visuals.Height)
	}

	tts, err := voiceover.New(cfg.Audio.TTSCommand, tmpl.Audio.Voice)
	if err != nil {
		return nil, err
	}

	var cch *cache.Cache
	if cfg.Cache.Enabled {
		cch, err = cache.New(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
	}

	sched := scheduler.New(map[string]int{
		pipeline.ClassImageGen: cfg.Scheduler.ImageConcurrency,
		pipeline.ClassTTS:      cfg.Scheduler.TTSConcurrency,
	}, 1, scheduler.Policy{
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Scheduler.BaseDelaySec * float64(time.Second)),
		MaxDelay:    time.Duration(cfg.Scheduler.MaxDelaySec * float64(time.Second)),
		Jitter:      0.2,
	})

	return pipeline.New(cfg, tmpl, cch, sched, pipeline.Adapters{
		Script:    processor,
		Visuals:   visual,
		Voiceover: tts,
		Subtitles: subtitles.New(),
		Assembler: assemble.New(tmpl),
	}), nil
}

func report(run *types.PipelineRun, elapsed time.Duration) {
	switch run.Status {
	case types.StatusCompleted:
		log.Printf("🎉 Video generation complete in %s", elapsed.Round(time.Second))
		log.Printf("📹 Final video: %s", run.FinalVideo)
	case types.StatusPartiallyFailed:
		log.Printf("⚠️  Run partially failed, failed stages: %v", run.FailedStages())
		if run.FinalVideo != "" {
			log.Printf("📹 Video (degraded): %s", run.FinalVideo)
		}
		log.Printf("📁 Inspect artifacts in %s; re-running reuses cached stages", run.Dir)
	default:
		log.Printf("❌ Run failed, failed stages: %v", run.FailedStages())
	}
}

func publishRun(ctx context.Context, cfg *config.Config, run *types.PipelineRun) error {
	up, err := publish.New(cfg.Publish, publish.Credentials{
		ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		RefreshToken: os.Getenv("YOUTUBE_REFRESH_TOKEN"),
	})
	if err != nil {
		return err
	}
	_, _, err = up.Run(ctx, run, "", "")
	return err
}
