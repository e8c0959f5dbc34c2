package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/icapexam/internal/model"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name, provider, openAIKey, geminiKey string
		want                                 Provider
		wantErr                              bool
	}{
		{"auto prefers gemini", "auto", "sk", "g", ProviderGemini, false},
		{"auto openai", "auto", "sk", "", ProviderOpenAI, false},
		{"auto none", "", "", "", ProviderNone, false},
		{"explicit openai", "OpenAI", "", "g", ProviderOpenAI, false},
		{"explicit none", "none", "sk", "g", ProviderNone, false},
		{"unknown", "claude", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveProvider(tt.provider, tt.openAIKey, tt.geminiKey)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanModelOutput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SCORE: 5/10", "SCORE: 5/10"},
		{"```\nSCORE: 5/10\n```", "SCORE: 5/10"},
		{"```text\nSCORE: 5/10\nFEEDBACK: ok\n```", "SCORE: 5/10\nFEEDBACK: ok"},
		{"  \n SCORE: 5/10 \n", "SCORE: 5/10"},
	}
	for _, tt := range tests {
		if got := cleanModelOutput(tt.in); got != tt.want {
			t.Errorf("cleanModelOutput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPromptBuilder(t *testing.T) {
	pb, err := newPromptBuilder("bogus")
	if err != nil {
		t.Fatalf("newPromptBuilder: %v", err)
	}
	if pb.variant != "strict" {
		t.Errorf("invalid variant should fall back to strict, got %q", pb.variant)
	}
	prompt, err := pb.build(model.Submission{
		Answer:  "An agent acts on behalf of a principal.",
		OCRText: "Section 182 of the Contract Act",
		Chapter: 10,
		Hint:    "Define an agent",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"Agency Law", "Define an agent", "An agent acts", "[Image Content]: Section 182"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestClientGrade(t *testing.T) {
	var gotReq struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"test-model"}]}`))
		case "/v1/chat/completions":
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("decode request: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "x",
				"object": "chat.completion",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": "```\nSCORE: 6/10\nRELEVANCE: On topic\n```",
					},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/v1", "test-key", "test-model", "standard")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	raw, err := c.Grade(context.Background(), model.Submission{Answer: "A contract is an agreement.", Chapter: 3})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if raw != "SCORE: 6/10\nRELEVANCE: On topic" {
		t.Errorf("raw = %q", raw)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != maxOutputTokens {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || !strings.Contains(gotReq.Messages[0].Content, "A contract is an agreement.") {
		t.Errorf("prompt does not carry the answer: %+v", gotReq.Messages)
	}
}

func TestClientGradeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "k", "m", "strict")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Grade(context.Background(), model.Submission{Answer: "x"}); err == nil {
		t.Error("expected error when no choices are returned")
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New("", "k", "", "strict"); err == nil {
		t.Error("expected error for empty model name")
	}
	if _, err := NewGemini(context.Background(), "", "", "strict"); err == nil {
		t.Error("expected error for empty gemini key")
	}
}
