package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
script:
  processor: gemini
  model: gemini-2.5-pro
scheduler:
  image_concurrency: 5
cache:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Script.Processor != "gemini" || cfg.Script.Model != "gemini-2.5-pro" {
		t.Errorf("script section not applied: %+v", cfg.Script)
	}
	if cfg.Scheduler.ImageConcurrency != 5 {
		t.Errorf("image_concurrency = %d", cfg.Scheduler.ImageConcurrency)
	}
	if cfg.Cache.Enabled {
		t.Error("cache.enabled override lost")
	}
	// Untouched sections keep their defaults.
	if cfg.Scheduler.MaxAttempts != 3 {
		t.Errorf("max_attempts default lost: %d", cfg.Scheduler.MaxAttempts)
	}
	if _, ok := cfg.Templates["default"]; !ok {
		t.Error("default template missing after load")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
script:
  procesor: gemini
`)
	if _, err := Load(path); err == nil {
		t.Fatal("misspelled key accepted")
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*Config)
		detail string
	}{
		{"bad processor", func(c *Config) { c.Script.Processor = "claude" }, "script.processor"},
		{"bad provider", func(c *Config) { c.Visuals.Provider = "dalle" }, "visuals.provider"},
		{"zero width", func(c *Config) { c.Visuals.Width = 0 }, "dimensions"},
		{"bad resolution", func(c *Config) {
			t := c.Templates["default"]
			t.Video.Resolution = "wide"
			c.Templates["default"] = t
		}, "resolution"},
		{"zero fps", func(c *Config) {
			t := c.Templates["default"]
			t.Video.FPS = 0
			c.Templates["default"] = t
		}, "fps"},
		{"music volume", func(c *Config) {
			t := c.Templates["default"]
			t.Audio.MusicVolume = 1.5
			c.Templates["default"] = t
		}, "music_volume"},
		{"bad transition", func(c *Config) {
			t := c.Templates["default"]
			t.Visuals.Transition = "wipe"
			c.Templates["default"] = t
		}, "transition"},
		{"bad position", func(c *Config) {
			t := c.Templates["default"]
			t.Subtitles.Position = "center"
			c.Templates["default"] = t
		}, "position"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.detail) {
				t.Errorf("error %q does not mention %q", err, tc.detail)
			}
		})
	}
}

func TestTemplateFor(t *testing.T) {
	t.Parallel()
	cfg := Default()
	noir := defaultTemplate()
	noir.Visuals.Style = "film noir, high contrast"
	cfg.Templates["noir"] = noir

	got, err := cfg.TemplateFor("noir")
	if err != nil {
		t.Fatalf("TemplateFor(noir): %v", err)
	}
	if got.Visuals.Style != "film noir, high contrast" {
		t.Errorf("wrong template resolved: %q", got.Visuals.Style)
	}

	if _, err := cfg.TemplateFor(""); err != nil {
		t.Errorf("empty style should fall back to default: %v", err)
	}
	if _, err := cfg.TemplateFor("missing"); err == nil {
		t.Error("unknown template accepted")
	}
}
