// Package format renders evaluation verdicts as the decorated text block
// shown to students.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/icapexam/internal/model"
)

// TimestampLayout is the footer date format.
const TimestampLayout = "02 Jan 2006, 03:04 PM"

var rule = strings.Repeat("═", 45)

// Labels are the localizable strings of a rendered report.
type Labels struct {
	Header      string
	Score       string
	Relevance   string
	Strengths   string
	Weaknesses  string
	Feedback    string
	ModelAnswer string
	Footer      string
}

// DefaultLabels returns the English labels for a chapter.
func DefaultLabels(chapter int) Labels {
	return Labels{
		Header:      fmt.Sprintf("🎓 ICAP AI EXAMINER - CHAPTER %d", chapter),
		Score:       "FINAL SCORE",
		Relevance:   "RELEVANCE",
		Strengths:   "STRENGTHS",
		Weaknesses:  "AREAS TO IMPROVE",
		Feedback:    "DETAILED FEEDBACK",
		ModelAnswer: "MODEL ANSWER SNIPPET",
		Footer:      "🤖 *AI Evaluation Powered by Cloud AI*",
	}
}

// Render formats v. Empty fields are left out and notes are copied verbatim
// after the tagged sections.
func Render(v model.Verdict, labels Labels, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(labels.Header + "\n")
	sb.WriteString(rule + "\n\n")

	if v.Score != "" {
		fmt.Fprintf(&sb, "📊 **%s: %s**\n\n", labels.Score, v.Score)
	}
	if v.Relevance != "" {
		fmt.Fprintf(&sb, "%s **%s:** %s\n", relevanceIcon(v.Relevance), labels.Relevance, v.Relevance)
	}
	section(&sb, "✨", labels.Strengths, v.Strengths)
	section(&sb, "🔧", labels.Weaknesses, v.Weaknesses)
	section(&sb, "💡", labels.Feedback, v.Feedback)
	section(&sb, "📚", labels.ModelAnswer, v.ModelAnswer)

	if len(v.Notes) > 0 {
		sb.WriteString("\n")
		for _, n := range v.Notes {
			sb.WriteString(n + "\n")
		}
	}

	sb.WriteString("\n" + rule + "\n")
	sb.WriteString(labels.Footer + "\n")
	fmt.Fprintf(&sb, "📅 %s\n", now.Format(TimestampLayout))
	return sb.String()
}

func section(sb *strings.Builder, icon, label, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(sb, "\n%s **%s:**\n%s\n", icon, label, body)
}

// relevanceIcon marks positive relevance statements with a check.
func relevanceIcon(relevance string) string {
	r := strings.ToLower(relevance)
	negative := strings.Contains(r, "incorrect") || strings.Contains(r, "mismatch") || strings.Contains(r, "wrong")
	positive := strings.Contains(r, "yes") || strings.Contains(r, "correct") || strings.Contains(r, "on topic")
	if positive && !negative {
		return "✅"
	}
	return "⚠️"
}
