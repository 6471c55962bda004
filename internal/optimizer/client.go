package optimizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptpal/internal/providers"
)

// ClientConfig holds the generation defaults applied when a request leaves
// them unset.
type ClientConfig struct {
	Model       string
	Temperature *float64 // nil uses DefaultTemperature; 0 is a valid setting
	MaxTokens   int      // 0 derives the budget from the prompt length
	Logger      *slog.Logger
}

// Client issues one chat completion per optimization.
type Client struct {
	llm         providers.LLMClient
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewClient creates a Client over llm.
func NewClient(llm providers.LLMClient, cfg ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = providers.OpenAIDefaultModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		llm:         llm,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

// Model returns the model requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Optimize sends req.Prompt with the fixed system instruction and returns the
// trimmed first completion. The text may be empty; deciding what that means is
// left to the caller.
func (c *Client) Optimize(ctx context.Context, req Request, credential string) (string, error) {
	if err := ValidatePrompt(req.Prompt); err != nil {
		return "", err
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := DefaultMaxTokens(req.Prompt)
	if c.maxTokens > 0 {
		maxTokens = c.maxTokens
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	chatReq := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: SystemPrompt},
			{Role: providers.RoleUser, Content: req.Prompt},
		},
		Model:       c.model,
		Temperature: &temperature,
		MaxTokens:   maxTokens,
		APIKey:      credential,
		RequestID:   uuid.NewString(),
	}

	c.logger.Debug("sending optimization request",
		"provider", c.llm.Name(),
		"model", c.model,
		"request_id", chatReq.RequestID,
		"max_tokens", maxTokens)

	result, err := c.llm.Chat(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("optimize prompt: %w", err)
	}
	return result.Content, nil
}
