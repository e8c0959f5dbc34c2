package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pavelanni/icapexam/internal/model"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini grades answers with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	prompt promptBuilder
}

// NewGemini creates a Gemini grader. Close releases its connection.
func NewGemini(ctx context.Context, apiKey, modelName, promptVariant string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	pb, err := newPromptBuilder(promptVariant)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: modelName, prompt: pb}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// Grade sends the submission to Gemini and returns the text of the first candidate.
func (g *Gemini) Grade(ctx context.Context, sub model.Submission) (string, error) {
	prompt, err := g.prompt.build(sub)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(temperature)
	m.SetMaxOutputTokens(maxOutputTokens)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	raw := sb.String()
	slog.Debug("LLM response", "provider", ProviderGemini, "raw", raw)
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("gemini returned no text")
	}
	return cleanModelOutput(raw), nil
}
