// Package config holds the immutable run configuration and named template
// bundles. Everything is resolved once at startup; no component reads ambient
// environment state after that.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Script    ScriptConfig    `yaml:"script"`
	Visuals   VisualsConfig   `yaml:"visuals"`
	Audio     AudioConfig     `yaml:"audio"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	Paths     PathsConfig     `yaml:"paths"`
	Publish   PublishConfig   `yaml:"publish"`

	Templates map[string]Template `yaml:"templates"`

	// API credentials, resolved from the environment by main only.
	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
	OpenAIBase   string `yaml:"-"`
}

type ScriptConfig struct {
	Processor   string  `yaml:"processor"` // gemini | openai | local
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type VisualsConfig struct {
	Provider string `yaml:"provider"` // pollinations | placeholder
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

type AudioConfig struct {
	TTSCommand string `yaml:"tts_command"` // external TTS binary; edge-tts fallback
}

type SubtitlesConfig struct {
	MaxCharsPerCue int     `yaml:"max_chars_per_cue"`
	MinCueSec      float64 `yaml:"min_cue_sec"`
	DriftTolerance int     `yaml:"drift_tolerance"`
}

type SchedulerConfig struct {
	ImageConcurrency int     `yaml:"image_concurrency"`
	TTSConcurrency   int     `yaml:"tts_concurrency"`
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelaySec     float64 `yaml:"base_delay_sec"`
	MaxDelaySec      float64 `yaml:"max_delay_sec"`
	StageTimeoutSec  float64 `yaml:"stage_timeout_sec"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
}

type PublishConfig struct {
	Visibility      string `yaml:"visibility"`
	CategoryID      string `yaml:"category_id"`
	DefaultLanguage string `yaml:"default_language"`
}

// Template is one named bundle of recognized rendering options
type Template struct {
	Video struct {
		Resolution string `yaml:"resolution"` // "1920x1080"
		FPS        int    `yaml:"fps"`
		Codec      string `yaml:"codec"`
		Preset     string `yaml:"preset"`
	} `yaml:"video"`
	Visuals struct {
		Style              string  `yaml:"style"`
		ColorScheme        string  `yaml:"color_scheme"`
		Transition         string  `yaml:"transition"` // cut | fade
		TransitionDuration float64 `yaml:"transition_duration"`
	} `yaml:"visuals"`
	Audio struct {
		Voice       string  `yaml:"voice"`
		MusicVolume float64 `yaml:"music_volume"` // 0..1
		VoiceVolume float64 `yaml:"voice_volume"` // 0..1
	} `yaml:"audio"`
	Subtitles struct {
		Font     string `yaml:"font"`
		Size     int    `yaml:"size"`
		Color    string `yaml:"color"`
		Position string `yaml:"position"` // bottom | top
		Outline  bool   `yaml:"outline"`
		BurnIn   bool   `yaml:"burn_in"`
	} `yaml:"subtitles"`
}

var resolutionRe = regexp.MustCompile(`^\d{2,5}x\d{2,5}$`)

// Default returns the configuration used when no config file is present
func Default() *Config {
	cfg := &Config{}
	cfg.Script.Processor = "local"
	cfg.Script.Model = "gemini-2.5-flash"
	cfg.Script.Temperature = 0.7
	cfg.Script.MaxTokens = 4000
	cfg.Visuals.Provider = "pollinations"
	cfg.Visuals.Width = 1920
	cfg.Visuals.Height = 1080
	cfg.Subtitles.MaxCharsPerCue = 84
	cfg.Subtitles.MinCueSec = 0.7
	cfg.Subtitles.DriftTolerance = 48
	cfg.Scheduler.ImageConcurrency = 3
	cfg.Scheduler.TTSConcurrency = 1
	cfg.Scheduler.MaxAttempts = 3
	cfg.Scheduler.BaseDelaySec = 2
	cfg.Scheduler.MaxDelaySec = 30
	cfg.Scheduler.StageTimeoutSec = 300
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = ".cache"
	cfg.Paths.Output = "output"
	cfg.Publish.Visibility = "private"
	cfg.Publish.CategoryID = "28"
	cfg.Publish.DefaultLanguage = "en"
	cfg.Templates = map[string]Template{"default": defaultTemplate()}
	return cfg
}

func defaultTemplate() Template {
	var t Template
	t.Video.Resolution = "1920x1080"
	t.Video.FPS = 30
	t.Video.Codec = "libx264"
	t.Video.Preset = "medium"
	t.Visuals.Style = "modern, premium tech-focused aesthetic, clean professional visuals"
	t.Visuals.ColorScheme = "cool blues and whites"
	t.Visuals.Transition = "cut"
	t.Audio.Voice = "Fenrir"
	t.Audio.MusicVolume = 0.15
	t.Audio.VoiceVolume = 1.0
	t.Subtitles.Font = "DejaVu Sans"
	t.Subtitles.Size = 28
	t.Subtitles.Color = "white"
	t.Subtitles.Position = "bottom"
	t.Subtitles.Outline = true
	t.Subtitles.BurnIn = true
	return t
}

// Load reads a YAML config file on top of the defaults. Unknown keys are a
// load-time error, not silently ignored.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, ok := cfg.Templates["default"]; !ok {
		cfg.Templates["default"] = defaultTemplate()
	}
	return cfg, cfg.Validate()
}

// Validate checks option ranges across the config and every template
func (c *Config) Validate() error {
	switch c.Script.Processor {
	case "gemini", "openai", "local":
	default:
		return fmt.Errorf("script.processor %q is not one of gemini|openai|local", c.Script.Processor)
	}
	switch c.Visuals.Provider {
	case "pollinations", "placeholder":
	default:
		return fmt.Errorf("visuals.provider %q is not one of pollinations|placeholder", c.Visuals.Provider)
	}
	if c.Visuals.Width <= 0 || c.Visuals.Height <= 0 {
		return fmt.Errorf("visuals dimensions must be positive")
	}
	for name, t := range c.Templates {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks one template bundle's option ranges
func (t Template) Validate() error {
	if !resolutionRe.MatchString(t.Video.Resolution) {
		return fmt.Errorf("video.resolution %q must look like 1920x1080", t.Video.Resolution)
	}
	if t.Video.FPS <= 0 {
		return fmt.Errorf("video.fps must be positive")
	}
	if t.Audio.MusicVolume < 0 || t.Audio.MusicVolume > 1 {
		return fmt.Errorf("audio.music_volume %.2f outside 0..1", t.Audio.MusicVolume)
	}
	if t.Audio.VoiceVolume < 0 || t.Audio.VoiceVolume > 1 {
		return fmt.Errorf("audio.voice_volume %.2f outside 0..1", t.Audio.VoiceVolume)
	}
	switch t.Visuals.Transition {
	case "", "cut", "fade":
	default:
		return fmt.Errorf("visuals.transition %q is not one of cut|fade", t.Visuals.Transition)
	}
	switch t.Subtitles.Position {
	case "", "bottom", "top":
	default:
		return fmt.Errorf("subtitles.position %q is not one of bottom|top", t.Subtitles.Position)
	}
	return nil
}

// TemplateFor resolves a named template, falling back to "default"
func (c *Config) TemplateFor(style string) (Template, error) {
	if style == "" || style == "default" {
		return c.Templates["default"], nil
	}
	t, ok := c.Templates[style]
	if !ok {
		return Template{}, fmt.Errorf("unknown style template %q", style)
	}
	return t, nil
}

// StageTimeout is the per-task external-call ceiling
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Scheduler.StageTimeoutSec * float64(time.Second))
}
