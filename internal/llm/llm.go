// Package llm holds the remote graders used by the evaluator: any
// OpenAI-compatible chat endpoint, and Google Gemini.
package llm

import (
	"fmt"
	"strings"

	"github.com/pavelanni/icapexam/internal/evaluator"
	"github.com/pavelanni/icapexam/internal/llm/prompts"
	"github.com/pavelanni/icapexam/internal/model"
)

const (
	temperature     = 0.2
	maxOutputTokens = 500
)

// Provider names a remote grading backend.
type Provider string

const (
	ProviderAuto   Provider = "auto"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

// ResolveProvider turns the configured provider into a concrete one. With
// "auto", a Gemini key wins over an OpenAI key; with neither, grading is local.
func ResolveProvider(name, openAIKey, geminiKey string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case "", ProviderAuto:
		switch {
		case geminiKey != "":
			return ProviderGemini, nil
		case openAIKey != "":
			return ProviderOpenAI, nil
		}
		return ProviderNone, nil
	case ProviderOpenAI, ProviderGemini, ProviderNone:
		return p, nil
	}
	return "", fmt.Errorf("unknown llm provider %q (want auto, openai, gemini or none)", name)
}

// promptBuilder renders the grading prompt for a submission.
type promptBuilder struct {
	set     *prompts.Set
	variant prompts.PromptVariant
}

func newPromptBuilder(variant string) (promptBuilder, error) {
	set, err := prompts.Default()
	if err != nil {
		return promptBuilder{}, fmt.Errorf("load prompts: %w", err)
	}
	v := prompts.PromptVariant(variant)
	if !prompts.IsValidVariant(variant) {
		v = prompts.PromptStrict
	}
	return promptBuilder{set: set, variant: v}, nil
}

func (b promptBuilder) build(sub model.Submission) (string, error) {
	return b.set.BuildGradePrompt(b.variant, prompts.GradeData{
		Chapter:      sub.Chapter,
		ChapterTitle: evaluator.ChapterTitle(sub.Chapter),
		Hint:         sub.Hint,
		Answer:       sub.Text(),
	})
}

// cleanModelOutput strips code fences some models wrap their reply in.
func cleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if i := strings.Index(cleaned, "\n"); i >= 0 {
			cleaned = cleaned[i+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
