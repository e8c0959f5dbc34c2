package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

// MaxAnswerRunes caps how much of an answer is sent to a remote grader.
const MaxAnswerRunes = 4000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict mirrors exam-day marking. It is the default.
	PromptStrict   PromptVariant = "strict"
	PromptStandard PromptVariant = "standard"
	// PromptLenient is meant for first attempts and revision practice.
	PromptLenient  PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// GradeData holds template data for grading prompts.
type GradeData struct {
	Chapter      int
	ChapterTitle string
	Hint         string
	Answer       string
}

// Set is a parsed collection of grading templates, one per variant.
type Set struct {
	grade map[PromptVariant]*template.Template
}

// Load parses grade_<variant>.txt for every variant from fsys.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{grade: make(map[PromptVariant]*template.Template)}
	for v := range validVariants {
		name := "grade_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		s.grade[v] = tmpl
	}
	return s, nil
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the templates compiled into the binary.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(templateFS, "templates")
		if err != nil {
			defaultErr = err
			return
		}
		defaultSet, defaultErr = Load(sub)
	})
	return defaultSet, defaultErr
}

// BuildGradePrompt renders the grading prompt for variant. The answer is
// sanitized before it is placed in the template.
func (s *Set) BuildGradePrompt(variant PromptVariant, data GradeData) (string, error) {
	if s == nil {
		return "", errors.New("templates not initialized")
	}
	tmpl, ok := s.grade[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data.Answer = sanitizeAnswer(data.Answer)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:MaxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
