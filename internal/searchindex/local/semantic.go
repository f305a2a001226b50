package local

import (
	"sort"
	"strings"
	"unicode"

	"digital-twin-search/internal/searchindex"
)

// answerThreshold is the share of query terms a passage must contain to be
// offered as an extractive answer.
const answerThreshold = 0.5

// maxAnswerCandidates bounds how many ranked hits are scanned for answers.
const maxAnswerCandidates = 5

func terms(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' || r == '\n' {
			if s := strings.TrimSpace(text[start : i+1]); len(s) > 1 {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func contentFields(doc searchindex.Document, cfg searchindex.SemanticConfiguration) []string {
	var names []string
	for _, f := range cfg.PrioritizedFields.ContentFields {
		names = append(names, f.FieldName)
	}
	if len(names) == 0 {
		names = []string{searchindex.FieldCombinedContent}
	}
	var out []string
	for _, n := range names {
		if v, ok := doc.StringField(n); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

// bestPassage picks the sentence of the prioritized content fields that
// covers the most query terms. The score is the covered share in [0,1].
func bestPassage(question string, doc searchindex.Document, cfg searchindex.SemanticConfiguration) (searchindex.Caption, float64) {
	qterms := terms(question)
	if len(qterms) == 0 {
		return searchindex.Caption{}, 0
	}
	want := make(map[string]bool, len(qterms))
	for _, t := range qterms {
		want[t] = true
	}

	var best string
	bestScore := 0.0
	for _, field := range contentFields(doc, cfg) {
		for _, s := range sentences(field) {
			seen := make(map[string]bool)
			for _, t := range terms(s) {
				if want[t] {
					seen[t] = true
				}
			}
			score := float64(len(seen)) / float64(len(want))
			if score > bestScore {
				best, bestScore = s, score
			}
		}
	}
	if best == "" {
		return searchindex.Caption{}, 0
	}
	return searchindex.Caption{Text: best, Highlights: highlight(best, want)}, bestScore
}

func highlight(s string, want map[string]bool) string {
	var b strings.Builder
	word := func(w string) {
		if want[strings.ToLower(w)] {
			b.WriteString("<em>" + w + "</em>")
		} else {
			b.WriteString(w)
		}
	}
	start := -1
	for i, r := range s {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case isWord && start < 0:
			start = i
		case !isWord && start >= 0:
			word(s[start:i])
			start = -1
			b.WriteRune(r)
		case !isWord:
			b.WriteRune(r)
		}
	}
	if start >= 0 {
		word(s[start:])
	}
	return b.String()
}

func extractAnswers(question string, ranked []searchindex.Hit, cfg searchindex.SemanticConfiguration, limit int) []searchindex.Answer {
	var answers []searchindex.Answer
	for i, h := range ranked {
		if i == maxAnswerCandidates {
			break
		}
		caption, score := bestPassage(question, h.Document, cfg)
		if score < answerThreshold {
			continue
		}
		answers = append(answers, searchindex.Answer{Key: h.Document.ID, Text: caption.Text, Score: score})
	}
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].Score > answers[j].Score })
	if len(answers) > limit {
		answers = answers[:limit]
	}
	return answers
}
