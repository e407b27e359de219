// Package visuals generates one image per scene.
package visuals

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"video-factory/stage"
	"video-factory/types"
)

// Pollinations generates AI images via pollinations.ai (free, no key needed)
type Pollinations struct {
	httpClient *http.Client
	style      string
	width      int
	height     int
}

// NewPollinations creates the fetcher. style is appended to every prompt so
// all scenes of a run share one look.
func NewPollinations(style string, width, height int) *Pollinations {
	return &Pollinations{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		style:      style,
		width:      width,
		height:     height,
	}
}

func (p *Pollinations) Version() string { return "pollinations-flux-v1" }

// Generate fetches an image for the scene's visual prompt and saves it at
// outPath. The seed is derived from the scene ordinal, so re-generation is
// reproducible.
func (p *Pollinations) Generate(ctx context.Context, scene types.Scene, outPath string) error {
	if scene.VisualPrompt == "" {
		return stage.Invalid("visuals", fmt.Errorf("scene %d has no visual prompt", scene.Ordinal))
	}

	prompt := scene.VisualPrompt
	if p.style != "" {
		prompt = prompt + ", " + p.style
	}
	prompt += ", no text, no watermark"

	imageURL := fmt.Sprintf(
		"https://image.pollinations.ai/prompt/%s?width=%d&height=%d&nologo=true&model=flux&seed=%d",
		url.PathEscape(prompt),
		p.width, p.height,
		scene.Ordinal*42+7,
	)

	log.Printf("[visuals] 🎨 Scene %d: generating image (%q)", scene.Ordinal, truncate(prompt, 60))
	if err := p.download(ctx, imageURL, outPath); err != nil {
		return err
	}
	log.Printf("[visuals] ✅ Scene %d image saved: %s", scene.Ordinal, outPath)
	return nil
}

func (p *Pollinations) download(ctx context.Context, imageURL, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return stage.Terminal("visuals", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VideoFactory/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stage.Transient("visuals", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return stage.Transient("visuals", fmt.Errorf("HTTP %d from pollinations", resp.StatusCode))
	default:
		return stage.Terminal("visuals", fmt.Errorf("HTTP %d from pollinations", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stage.Transient("visuals", err)
	}
	// An error HTML page is far smaller than any real frame
	if len(data) < 100 {
		return stage.Transient("visuals", fmt.Errorf("response too small (%d bytes)", len(data)))
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return stage.Terminal("visuals", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
