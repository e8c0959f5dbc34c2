package evaluator

import (
	"strings"

	"github.com/pavelanni/icapexam/internal/model"
)

// ParseVerdict reads the line-tagged grading format. Unrecognized non-empty
// lines are kept in Notes in their original order.
func ParseVerdict(raw string) model.Verdict {
	var v model.Verdict
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") {
			continue
		}
		tag, value, ok := splitTag(line)
		if !ok {
			v.Notes = append(v.Notes, line)
			continue
		}
		switch tag {
		case "SCORE":
			v.Score = value
		case "RELEVANCE":
			v.Relevance = value
		case "STRENGTHS":
			v.Strengths = value
		case "WEAKNESSES":
			v.Weaknesses = value
		case "FEEDBACK":
			v.Feedback = value
		case "CORRECT_ANSWER", "MODEL_ANSWER":
			v.ModelAnswer = value
		default:
			v.Notes = append(v.Notes, line)
		}
	}
	return v
}

// splitTag splits "TAG: value", tolerating markdown emphasis such as "**SCORE:** 7/10".
func splitTag(line string) (tag, value string, ok bool) {
	stripped := strings.TrimLeft(line, "*#_ ")
	i := strings.Index(stripped, ":")
	if i <= 0 {
		return "", "", false
	}
	tag = strings.TrimRight(stripped[:i], "*_ ")
	if tag != strings.ToUpper(tag) || strings.ContainsAny(tag, " ") {
		return "", "", false
	}
	value = strings.TrimSpace(strings.Trim(strings.TrimSpace(stripped[i+1:]), "*_"))
	return tag, strings.TrimSpace(value), true
}
