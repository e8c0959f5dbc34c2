package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// User represents a student account.
type User struct {
	Username  string
	Password  string // bcrypt hash, or plaintext for imported legacy documents
	Token     string
	CreatedAt time.Time
}

// AdminSession is the single active admin session.
type AdminSession struct {
	Token    string
	IssuedAt time.Time
}

// AccessMode describes how a chapter access check was decided.
type AccessMode string

const (
	AccessDemo    AccessMode = "demo"
	AccessLogin   AccessMode = "login"
	AccessInvalid AccessMode = "invalid"
)

// Access is the result of a chapter access check.
type Access struct {
	Granted  bool
	Mode     AccessMode
	Username string
}

// Question is a single exam question in a chapter.
type Question struct {
	ID    string `json:"id" yaml:"id"`
	Text  string `json:"text" yaml:"text"`
	Marks int    `json:"marks" yaml:"marks" validate:"gte=0"`
}

// Chapter is a named collection of questions.
type Chapter struct {
	ID        string     `json:"-" yaml:"-"`
	Name      string     `json:"name" yaml:"name"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// ChapterRef identifies a chapter in request bodies. Clients send either a
// number (1) or a string ("1", "chapter1").
type ChapterRef string

// UnmarshalJSON accepts both JSON numbers and strings.
func (c *ChapterRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ChapterRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chapter must be a number or string: %w", err)
	}
	*c = ChapterRef(n.String())
	return nil
}

// MarshalJSON emits numeric references as numbers.
func (c ChapterRef) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(c)); err == nil {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(string(c))
}

// Number returns the chapter number, taken from the trailing digits of the
// reference ("chapter3" and "3" both yield 3).
func (c ChapterRef) Number() (int, bool) {
	s := string(c)
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Submission is a single answer sent for evaluation.
type Submission struct {
	Answer  string
	OCRText string
	Chapter int
	Hint    string
}

// ImageMarker separates typed answer text from OCR-extracted text.
const ImageMarker = "\n[Image Content]: "

// Text returns the answer with any OCR text appended.
func (s Submission) Text() string {
	if strings.TrimSpace(s.OCRText) == "" {
		return s.Answer
	}
	return s.Answer + ImageMarker + s.OCRText
}

// VerdictSource records which evaluator produced a verdict.
type VerdictSource string

const (
	SourceHeuristic VerdictSource = "heuristic"
	SourceRemote    VerdictSource = "remote"
)

// Verdict is the structured evaluation of an answer.
type Verdict struct {
	Score       string        `json:"score"`
	Relevance   string        `json:"relevance"`
	Strengths   string        `json:"strengths"`
	Weaknesses  string        `json:"weaknesses"`
	Feedback    string        `json:"feedback"`
	ModelAnswer string        `json:"model_answer"`
	Notes       []string      `json:"notes,omitempty"`
	Source      VerdictSource `json:"source"`
}

// Points parses the numeric part of Score ("7/10" -> 7).
func (v Verdict) Points() (int, bool) {
	s := strings.TrimSpace(v.Score)
	if i := strings.Index(s, "/"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ServerConfig holds runtime parameters for the HTTP surface set via CLI flags.
type ServerConfig struct {
	StaticDir   string
	CORSOrigins []string
}
