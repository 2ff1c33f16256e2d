// Package llm adapts OpenAI-compatible inference endpoints to the
// InferenceClient port. Self-hosted endpoints (vLLM, Ollama) work through
// the base URL override.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/opsgate/opsgate/internal/port/outbound"
)

const defaultModel = "gpt-4o-mini"

const systemPrompt = "You are an SRE assistant. Analyze the operational data " +
	"you are given and answer concisely. When proposing remediation, state a " +
	"confidence between 0 and 1."

// Config holds the inference endpoint settings.
type Config struct {
	// APIKey authenticates against the endpoint.
	APIKey string
	// BaseURL overrides the OpenAI API base for self-hosted endpoints.
	BaseURL string
	// Model is the model identifier.
	Model string
	// Temperature controls sampling. Zero keeps the endpoint default.
	Temperature float32
}

// OpenAIClient implements outbound.InferenceClient over the chat
// completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewOpenAIClient creates an inference client.
func NewOpenAIClient(cfg Config, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("inference API key required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
		logger.Warn("inference model not set, using default", "model", model)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Infer returns the model's completion for the prompt.
func (o *OpenAIClient) Infer(ctx context.Context, prompt string) (string, error) {
	o.logger.Debug("running inference", "model", o.model, "prompt_len", len(prompt))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("inference returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Compile-time interface verification.
var _ outbound.InferenceClient = (*OpenAIClient)(nil)
