package evaluator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pavelanni/icapexam/internal/model"
)

// OffTopicScore is awarded to answers on an unrelated subject.
const OffTopicScore = 1

// DefaultOffTopicTerms are words that mark an answer as belonging to another subject.
var DefaultOffTopicTerms = []string{
	"mitochondria", "cell", "cells", "biology", "science", "physics",
	"chemistry", "photosynthesis", "molecule", "atom", "computer",
}

// DefaultLegalTerms are words expected in a Business Law answer.
var DefaultLegalTerms = []string{
	"legal", "law", "laws", "contract", "contracts", "act", "section",
	"court", "courts", "judge", "statute", "agreement", "offer",
	"acceptance", "consideration", "liability", "breach", "agent",
	"principal", "partner", "partnership", "plaintiff", "defendant",
}

// Inflections under which a legal term still counts, so "judges",
// "contractual" and "legally" hit while "actors" does not. Derived forms need
// a stem of at least minDerivedStem letters ("actual" is not "act").
var (
	legalInflections = []string{"s", "es", "d", "ed", "ing"}
	legalDerivations = []string{"ly", "al", "ally", "ual", "ually", "ion", "ions"}
)

const minDerivedStem = 4

// Rules is the local keyword heuristic.
type Rules struct {
	OffTopicTerms []string
	LegalTerms    []string
	Baseline      int // score for any genuine attempt
	WordsPerPoint int
	HitWeight     int // points per legal term occurrence
	MaxHitPoints  int
}

// DefaultRules returns the heuristic used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		OffTopicTerms: DefaultOffTopicTerms,
		LegalTerms:    DefaultLegalTerms,
		Baseline:      1,
		WordsPerPoint: 40,
		HitWeight:     2,
		MaxHitPoints:  6,
	}
}

// Stats are the text measurements the heuristic scores on.
type Stats struct {
	Words     int
	LegalHits int
	OffTopic  bool
}

// Measure counts words and vocabulary hits in text.
func (r Rules) Measure(text string) Stats {
	words := tokenize(text)
	legal := toSet(r.LegalTerms)
	offTopic := toSet(r.OffTopicTerms)

	var st Stats
	var wrong bool
	st.Words = len(strings.Fields(text))
	for _, w := range words {
		if isLegalTerm(w, legal) {
			st.LegalHits++
		}
		if offTopic[w] {
			wrong = true
		}
	}
	st.OffTopic = wrong && st.LegalHits == 0
	return st
}

// Score maps word count and legal hits to [0,10]. It is non-decreasing in both.
func (r Rules) Score(words, legalHits int) int {
	if words <= 0 {
		return 0
	}
	perPoint := r.WordsPerPoint
	if perPoint <= 0 {
		perPoint = 40
	}
	hitPoints := legalHits * r.HitWeight
	if r.MaxHitPoints > 0 && hitPoints > r.MaxHitPoints {
		hitPoints = r.MaxHitPoints
	}
	return clamp(r.Baseline+words/perPoint+hitPoints, 0, 10)
}

// Evaluate produces the heuristic verdict for a submission.
func (r Rules) Evaluate(sub model.Submission) model.Verdict {
	text := sub.Text()
	st := r.Measure(text)

	if st.OffTopic {
		return model.Verdict{
			Score:       fmt.Sprintf("%d/10", OffTopicScore),
			Relevance:   "Topic mismatch - answer is about a different subject",
			Strengths:   "None - off-topic",
			Weaknesses:  "Wrong subject, no legal content",
			Feedback:    "❌ Topic mismatch: you are answering about science/biology for a LAW question. This gets almost zero marks.",
			ModelAnswer: "Legal concepts only - no science topics.",
			Source:      model.SourceHeuristic,
		}
	}

	if st.Words == 0 {
		return model.Verdict{
			Score:       "0/10",
			Relevance:   "No answer provided",
			Strengths:   "None",
			Weaknesses:  "Empty submission",
			Feedback:    "Write your answer before submitting.",
			ModelAnswer: modelAnswerFor(sub),
			Source:      model.SourceHeuristic,
		}
	}

	score := r.Score(st.Words, st.LegalHits)
	v := model.Verdict{
		Score:       fmt.Sprintf("%d/10", score),
		Strengths:   fmt.Sprintf("Attempted answer, %d words, %d legal terms", st.Words, st.LegalHits),
		ModelAnswer: modelAnswerFor(sub),
		Source:      model.SourceHeuristic,
	}
	switch {
	case score >= 8:
		v.Relevance = "Yes - on topic with good legal vocabulary"
		v.Weaknesses = "Add case law references and statute sections to secure full marks"
		v.Feedback = "Strong response. Keep citing the relevant Act and sections, and finish with a clear conclusion."
	case score >= 5:
		v.Relevance = "On topic"
		v.Weaknesses = "Needs more legal depth, case law and statutes"
		v.Feedback = "Good attempt. For better marks: 1) Reference the Contract Act 1872 2) Use precise legal terminology 3) Include examples 4) Structure with headings."
	default:
		v.Relevance = "Basic relevance"
		v.Weaknesses = "Too short or too general; legal terminology missing"
		v.Feedback = "Basic response. Add: 1) Specific laws 2) Case examples 3) Legal principles 4) A proper conclusion."
	}
	return v
}

func modelAnswerFor(sub model.Submission) string {
	if title, ok := chapterTitles[sub.Chapter]; ok {
		return "Refer to the ICAP study material for " + title + "."
	}
	return "Study the relevant legal framework thoroughly."
}

// tokenize lowercases text and splits it on anything that is not a letter.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// isLegalTerm matches a token against legal terms, allowing inflected forms.
// Off-topic terms are matched as whole words only.
func isLegalTerm(word string, legal map[string]bool) bool {
	if legal[word] {
		return true
	}
	for _, suf := range legalInflections {
		if stem, ok := strings.CutSuffix(word, suf); ok && legal[stem] {
			return true
		}
	}
	for _, suf := range legalDerivations {
		if stem, ok := strings.CutSuffix(word, suf); ok && len(stem) >= minDerivedStem && legal[stem] {
			return true
		}
	}
	return false
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return set
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
