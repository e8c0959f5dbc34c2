package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/icapexam/internal/model"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api    *openai.Client
	model  string
	prompt promptBuilder
}

// New creates a grader for an OpenAI-compatible endpoint.
func New(baseURL, apiKey, modelName, promptVariant string) (*Client, error) {
	if modelName == "" {
		return nil, errors.New("llm model name is required")
	}
	pb, err := newPromptBuilder(promptVariant)
	if err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(config),
		model:  modelName,
		prompt: pb,
	}, nil
}

// Ping checks that the endpoint is reachable by listing its models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Grade sends the submission to the model and returns its raw reply.
func (c *Client) Grade(ctx context.Context, sub model.Submission) (string, error) {
	prompt, err := c.prompt.build(sub)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "provider", ProviderOpenAI, "raw", raw)
	return cleanModelOutput(raw), nil
}
