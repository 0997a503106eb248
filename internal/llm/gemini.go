package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
	logx "github.com/tourwise/server/pkg/logger"
)

// NewGeminiClient creates the shared Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// GeminiCompleter implements Completer on top of an Eino Gemini chat model.
type GeminiCompleter struct {
	chat      *gemini.ChatModel
	modelName string
}

// NewGeminiCompleter builds a completer for a single model configuration.
func NewGeminiCompleter(ctx context.Context, client *genai.Client, modelName string, temperature float32, maxTokens int) (*GeminiCompleter, error) {
	chat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       modelName,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Str("model", modelName).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model %s: %w", modelName, err)
	}

	return &GeminiCompleter{chat: chat, modelName: modelName}, nil
}

// Complete sends a single-user-message generation request and returns the
// model's text content. Token usage and USD cost are logged per call.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := g.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", errx.Infra(err, errx.CompletionErrorMessage)
	}
	if out == nil {
		return "", errx.Infra(fmt.Errorf("nil completion"), errx.CompletionErrorMessage)
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		pricing := model.ResolvePricing(g.modelName)
		inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
		logx.Debug().
			Str("model", g.modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}

	return out.Content, nil
}
