package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIClient implements Client on top of any OpenAI-compatible endpoint
// via langchaingo. Azure OpenAI works through the base-URL override.
type OpenAIClient struct {
	model llms.Model
	name  string
}

// OpenAIConfig holds provider wiring for NewOpenAIClient.
type OpenAIConfig struct {
	Model   string
	Token   string
	BaseURL string // optional; empty means the public OpenAI endpoint
}

// NewOpenAIClient creates a langchaingo-backed client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.Token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	slog.Info("LLM client configured", "model", cfg.Model)
	return &OpenAIClient{model: model, name: cfg.Model}, nil
}

// Complete sends the conversation and returns the model's reply.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role llms.ChatMessageType
		switch msg.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("LLM completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Content: choice.Content,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (c *OpenAIClient) Close() error { return nil }

func usageFromGenerationInfo(info map[string]any) Usage {
	var u Usage
	u.PromptTokens = intFromInfo(info, "PromptTokens")
	u.CompletionTokens = intFromInfo(info, "CompletionTokens")
	u.TotalTokens = intFromInfo(info, "TotalTokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func intFromInfo(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
