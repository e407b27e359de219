package visuals

import (
	"context"
	"fmt"
	"log"
	"os/exec"

	"video-factory/stage"
	"video-factory/types"
)

// Placeholder renders a solid dark frame per scene via ffmpeg. Used as the
// offline provider and as the absolute fallback when image generation is
// unavailable.
type Placeholder struct {
	width  int
	height int
}

// NewPlaceholder creates the offline frame generator
func NewPlaceholder(width, height int) *Placeholder {
	return &Placeholder{width: width, height: height}
}

func (p *Placeholder) Version() string { return "placeholder-v1" }

func (p *Placeholder) Generate(ctx context.Context, scene types.Scene, outPath string) error {
	label := scene.Narration
	if len(label) > 60 {
		label = label[:60]
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x1a1a2e:s=%dx%d:d=1", p.width, p.height),
		"-frames:v", "1",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return stage.Terminal("visuals", fmt.Errorf("ffmpeg placeholder: %w: %s", err, tail(out)))
	}
	log.Printf("[visuals] 📝 Scene %d placeholder frame: %s (%q)", scene.Ordinal, outPath, label)
	return nil
}

func tail(out []byte) string {
	const n = 300
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return string(out)
}
