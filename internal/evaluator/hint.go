package evaluator

import "strings"

// chapterTitles is the ICAP Business Law syllabus by chapter number.
var chapterTitles = map[int]string{
	1:  "Introduction to Legal System",
	2:  "Offer and Acceptance",
	3:  "Contract Validity",
	4:  "Free Consent",
	5:  "Contingent Contracts",
	6:  "Contract Performance",
	7:  "Performance of Contracts-2",
	8:  "Quasi Contracts",
	9:  "Breach of Contract",
	10: "Agency Law",
	11: "Partnership Nature",
	12: "Partners Relations",
	13: "Third Party Relations",
	14: "Negotiable Instruments",
	15: "AML and E-Payments",
}

// ChapterTitle returns the syllabus title of a chapter, or "Business Law".
func ChapterTitle(chapter int) string {
	if t, ok := chapterTitles[chapter]; ok {
		return t
	}
	return "Business Law"
}

// QuestionHint guesses which question an answer responds to. Students often
// paste the question above their answer, so a short line ending in a
// question mark near the top wins.
func QuestionHint(answer string, chapter int) string {
	lines := strings.Split(answer, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, line := range lines {
		if strings.Contains(line, "?") && len(line) < 200 {
			return strings.TrimSpace(line)
		}
	}

	lower := strings.ToLower(answer)
	switch {
	case strings.Contains(lower, "legal system") || strings.Contains(lower, "define legal"):
		return "What is meant by Legal System?"
	case strings.Contains(lower, "mitochondria") || strings.Contains(lower, "cell"):
		return "Biology topic (but question was Law)"
	}
	return ChapterTitle(chapter)
}
