// Package script turns raw text input into an ordered scene list. Three
// processors are available: gemini (hosted model, the primary path), openai
// (any OpenAI-compatible endpoint), and local (deterministic sentence
// segmentation, no network).
package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"video-factory/stage"
	"video-factory/types"
)

const wordsPerMinute = 130.0

const systemPrompt = `You are a video script processor. Your task is to:

1. Analyze the input text
2. Split it into logical scenes (each 5-10 seconds)
3. For each scene:
   - Extract the narration text (what will be spoken)
   - Create a detailed visual prompt for AI image generation
   - Estimate duration in seconds

Style guidelines: %s
- 1920x1080 resolution
- Clean, professional visuals
- Include mood, lighting, composition in visual prompts
- Keep narration text concise and clear

Return ONLY a valid JSON array with this exact structure:
[
  {
    "id": "scene-001",
    "text": "narration text here",
    "visual_prompt": "detailed image generation prompt",
    "duration": 5.5
  }
]`

type sceneJSON struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	VisualPrompt string  `json:"visual_prompt"`
	Duration     float64 `json:"duration"`
}

// parseScenes decodes a model response into validated scenes
func parseScenes(content string) ([]types.Scene, error) {
	content = cleanJSON(content)

	var raw []sceneJSON
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, stage.Transient("script", fmt.Errorf("parse scene JSON: %w", err))
	}
	if len(raw) == 0 {
		return nil, stage.Transient("script", fmt.Errorf("model returned no scenes"))
	}

	scenes := make([]types.Scene, 0, len(raw))
	for i, s := range raw {
		scene := types.Scene{
			Ordinal:      i + 1,
			ID:           types.SceneID(i + 1),
			Narration:    strings.TrimSpace(s.Text),
			VisualPrompt: strings.TrimSpace(s.VisualPrompt),
			Duration:     s.Duration,
		}
		if scene.Duration <= 0 {
			scene.Duration = estimateDuration(scene.Narration)
		}
		if err := scene.Validate(); err != nil {
			return nil, stage.Transient("script", err)
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

// cleanJSON strips markdown fences when the model wraps its response
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// estimateDuration approximates spoken length at a natural reading pace
func estimateDuration(narration string) float64 {
	words := len(strings.Fields(narration))
	d := float64(words) / wordsPerMinute * 60.0
	if d < 1.0 {
		d = 1.0
	}
	return d
}

func buildUserPrompt(in stage.ScriptInput) string {
	var sb strings.Builder
	if in.IsScript {
		sb.WriteString("Split this script into video scenes. Preserve the narration text exactly; do not rewrite it:\n\n")
	} else {
		sb.WriteString("Process this text into video scenes:\n\n")
	}
	sb.WriteString(in.Text)
	sb.WriteString("\n\n")
	if in.Language != "" {
		sb.WriteString(fmt.Sprintf("Narration language: %s\n", in.Language))
	}
	sb.WriteString("Generate scenes with narration and visual prompts. Return ONLY valid JSON array, no other text.")
	return sb.String()
}
