package script

import (
	"context"
	"fmt"
	"log"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"video-factory/stage"
	"video-factory/types"
)

// OpenAI segments text into scenes through any OpenAI-compatible chat
// completion endpoint (OpenAI itself, Groq, local gateways)
type OpenAI struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAI creates the OpenAI-compatible script processor. baseURL is
// optional; leave it empty for api.openai.com.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, stage.Invalid("script", fmt.Errorf("openai api key not configured"))
	}
	if model == "" {
		return nil, stage.Invalid("script", fmt.Errorf("openai model is required"))
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{model: model, opts: opts}, nil
}

func (o *OpenAI) Version() string { return "openai-v1:" + o.model }

func (o *OpenAI) Process(ctx context.Context, in stage.ScriptInput) ([]types.Scene, error) {
	log.Printf("[script] 🤖 Processing script via %s...", o.model)

	client := openai.NewClient(o.opts...)

	style := in.Style
	if style == "" {
		style = "modern, premium tech-focused aesthetic"
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPrompt, style)),
			openai.UserMessage(buildUserPrompt(in)),
		},
	})
	if err != nil {
		return nil, stage.Transient("script", fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, stage.Transient("script", fmt.Errorf("empty choices"))
	}

	scenes, err := parseScenes(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	log.Printf("[script] ✅ Generated %d scenes", len(scenes))
	return scenes, nil
}
