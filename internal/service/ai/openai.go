package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sparkforge/spark-os/backend/internal/config"
	"github.com/sparkforge/spark-os/backend/internal/model/chat"
)

// OpenAICompleter calls an OpenAI-compatible chat endpoint through langchaingo.
type OpenAICompleter struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

// NewOpenAICompleter builds the client from configuration.
func NewOpenAICompleter(cfg config.AIConfig) (*OpenAICompleter, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.OpenAIKey),
		openai.WithModel(cfg.OpenAIModel),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewOpenAICompleterWithModel(llm, cfg.Temperature, cfg.MaxTokens), nil
}

// NewOpenAICompleterWithModel wraps an existing langchaingo model.
func NewOpenAICompleterWithModel(llm llms.Model, temperature float64, maxTokens int) *OpenAICompleter {
	return &OpenAICompleter{llm: llm, temperature: temperature, maxTokens: maxTokens}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.Directive))
	for _, turn := range req.History {
		msgType := llms.ChatMessageTypeHuman
		if turn.Role == chat.RolePersona {
			msgType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(msgType, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Message))

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("openai generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("openai response has no choices")
	}
	return resp.Choices[0].Content, nil
}
