package script

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"video-factory/stage"
	"video-factory/types"
)

// Gemini segments text into scenes with Google's generative models
type Gemini struct {
	apiKey      string
	model       string
	temperature float32
	maxTokens   int32
}

// NewGemini creates the Gemini script processor
func NewGemini(apiKey, model string, temperature float64, maxTokens int) (*Gemini, error) {
	if apiKey == "" {
		return nil, stage.Invalid("script", fmt.Errorf("gemini api key not configured"))
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		apiKey:      apiKey,
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
	}, nil
}

func (g *Gemini) Version() string { return "gemini-v1:" + g.model }

func (g *Gemini) Process(ctx context.Context, in stage.ScriptInput) ([]types.Scene, error) {
	log.Println("[script] 🤖 Processing script with Gemini...")

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, stage.Transient("script", fmt.Errorf("gemini client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(g.maxTokens)
	}

	style := in.Style
	if style == "" {
		style = "modern, premium tech-focused aesthetic"
	}
	prompt := fmt.Sprintf(systemPrompt, style) + "\n\n" + buildUserPrompt(in)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, stage.Transient("script", fmt.Errorf("gemini generation: %w", err))
	}

	content, err := textFromResponse(resp)
	if err != nil {
		return nil, stage.Transient("script", err)
	}

	scenes, err := parseScenes(content)
	if err != nil {
		return nil, err
	}
	log.Printf("[script] ✅ Generated %d scenes", len(scenes))
	return scenes, nil
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini candidate held no text parts")
	}
	return sb.String(), nil
}
