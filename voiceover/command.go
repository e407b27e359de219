// Package voiceover speaks the full narration through an external TTS command
// and derives per-scene timing markers from the produced audio.
package voiceover

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"video-factory/stage"
	"video-factory/types"
)

// CommandTTS shells out to a TTS binary that accepts
//
//	--text "..." --output path/to/file.mp3
//
// plus voice selection. When no command is configured it falls back to
// edge-tts if installed.
type CommandTTS struct {
	command string
	voice   string
}

// New creates the command-backed voiceover generator
func New(command, voice string) (*CommandTTS, error) {
	if command == "" {
		if _, err := exec.LookPath("edge-tts"); err != nil {
			return nil, stage.Invalid("voiceover",
				errors.New("no TTS engine found: set audio.tts_command or install edge-tts"))
		}
		command = "edge-tts"
		log.Println("[voiceover] Using edge-tts as TTS engine (fallback)")
	}
	return &CommandTTS{command: command, voice: voice}, nil
}

func (c *CommandTTS) Version() string { return "command-tts-v1:" + c.command }

// Generate speaks the concatenated narration into outPath in a single call,
// measures the real audio duration, and scales the scene duration estimates
// onto it so the marker sequence covers the audio exactly.
func (c *CommandTTS) Generate(ctx context.Context, scenes []types.Scene, outPath string) (stage.VoiceoverResult, error) {
	if len(scenes) == 0 {
		return stage.VoiceoverResult{}, stage.Invalid("voiceover", errors.New("no scenes to narrate"))
	}

	var parts []string
	for _, s := range scenes {
		parts = append(parts, s.Narration)
	}
	narration := strings.Join(parts, " ")
	log.Printf("[voiceover] 🎙️  Generating voiceover: %d scenes, %d chars", len(scenes), len(narration))

	if err := c.speak(ctx, narration, outPath); err != nil {
		return stage.VoiceoverResult{}, err
	}

	duration, err := probeDuration(ctx, outPath)
	if err != nil {
		log.Printf("[voiceover] Warning: could not measure duration, using estimates: %v", err)
		for _, s := range scenes {
			duration += s.Duration
		}
	}

	result := stage.VoiceoverResult{
		AudioPath: outPath,
		Duration:  duration,
		Markers:   Markers(scenes, duration),
	}
	log.Printf("[voiceover] ✅ Voiceover ready: %s (%.1fs)", outPath, duration)
	return result, nil
}

func (c *CommandTTS) speak(ctx context.Context, text, outPath string) error {
	var cmd *exec.Cmd
	switch {
	case c.command == "edge-tts":
		voice := c.voice
		if voice == "" {
			voice = "en-US-GuyNeural"
		}
		cmd = exec.CommandContext(ctx, "edge-tts",
			"--voice", voice,
			"--text", text,
			"--write-media", outPath,
		)
	case strings.HasSuffix(c.command, ".py"):
		cmd = exec.CommandContext(ctx, "python3", c.command,
			"--text", text,
			"--voice", c.voice,
			"--output", outPath,
		)
	default:
		cmd = exec.CommandContext(ctx, c.command,
			"--text", text,
			"--voice", c.voice,
			"--output", outPath,
		)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		// TTS engines fail transiently on quota and connectivity; the
		// scheduler owns the retry budget.
		return stage.Transient("voiceover", fmt.Errorf("tts command: %w: %s", err, lastLine(out)))
	}
	return nil
}

// Markers distributes the measured audio duration across scenes
// proportionally to their estimated durations, yielding a non-overlapping,
// monotone marker per scene.
func Markers(scenes []types.Scene, totalSec float64) []types.TimingMarker {
	var estimated float64
	for _, s := range scenes {
		estimated += s.Duration
	}
	if estimated <= 0 || totalSec <= 0 {
		return nil
	}
	scale := totalSec / estimated

	markers := make([]types.TimingMarker, 0, len(scenes))
	var elapsed float64
	for _, s := range scenes {
		end := elapsed + s.Duration*scale
		markers = append(markers, types.TimingMarker{
			Start: elapsed,
			End:   end,
			Text:  s.Narration,
		})
		elapsed = end
	}
	return markers
}

func probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
