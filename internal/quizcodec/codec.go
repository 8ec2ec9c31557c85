// Package quizcodec turns free-form model output into validated quiz
// questions. Parsing is best-effort: any structural failure yields a
// deterministic fallback set instead of an error, so generator flakiness
// never propagates past this package.
package quizcodec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
)

const (
	MaxQuestions  = 20
	fallbackMax   = 5
	defaultPoints = 10
)

type candidate struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Points        int      `json:"points"`
}

type payload struct {
	// Pointer so a missing "questions" field is distinguishable from an
	// empty one.
	Questions *[]candidate `json:"questions"`
}

// Parse extracts the first balanced top-level JSON object from raw, decodes
// its "questions" array, validates and normalizes each entry, and truncates
// to count. On any structural failure it returns Fallback questions.
func Parse(raw string, count int, topic string, concepts []string) []study.QuizQuestion {
	count = clampCount(count)

	blob, ok := extractObject(raw)
	if !ok {
		return Fallback(count, topic, concepts)
	}

	var p payload
	if err := json.Unmarshal([]byte(blob), &p); err != nil || p.Questions == nil {
		return Fallback(count, topic, concepts)
	}

	return normalize(*p.Questions, count)
}

// normalize applies the required-field and defaulting rules to candidate
// questions and truncates (never pads) to count.
func normalize(cands []candidate, count int) []study.QuizQuestion {
	count = clampCount(count)
	out := make([]study.QuizQuestion, 0, len(cands))
	for _, c := range cands {
		q := strings.TrimSpace(c.Question)
		answer := strings.TrimSpace(c.CorrectAnswer)
		explanation := strings.TrimSpace(c.Explanation)
		if q == "" || answer == "" || explanation == "" {
			continue
		}

		qt := study.QuestionType(strings.TrimSpace(c.Type))
		switch qt {
		case study.QuestionMultipleChoice, study.QuestionTrueFalse, study.QuestionShortAnswer:
		default:
			qt = study.QuestionShortAnswer
		}

		points := c.Points
		if points <= 0 {
			points = defaultPoints
		}

		id := strings.TrimSpace(c.ID)
		if id == "" {
			// Synthetic ids number the validated sequence, not the raw one.
			id = fmt.Sprintf("q%d", len(out)+1)
		}

		var options []string
		if qt == study.QuestionMultipleChoice {
			options = c.Options
		}

		out = append(out, study.QuizQuestion{
			ID:            id,
			Question:      q,
			Type:          qt,
			Options:       options,
			CorrectAnswer: answer,
			Explanation:   explanation,
			Points:        points,
		})
	}
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// NormalizeQuestions re-applies the required-field and defaulting rules to
// already-typed questions; the quiz generation workflow runs it as a quality
// gate over whatever the generation step produced.
func NormalizeQuestions(questions []study.QuizQuestion, count int) []study.QuizQuestion {
	cands := make([]candidate, 0, len(questions))
	for _, q := range questions {
		cands = append(cands, candidate{
			ID:            q.ID,
			Question:      q.Question,
			Type:          string(q.Type),
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Points:        q.Points,
		})
	}
	return normalize(cands, count)
}

// Fallback produces min(count, 5) short-answer questions cycling through the
// key concepts, or the topic itself when no concepts are available. Identical
// inputs always yield identical questions.
func Fallback(count int, topic string, concepts []string) []study.QuizQuestion {
	count = clampCount(count)
	if count > fallbackMax {
		count = fallbackMax
	}
	out := make([]study.QuizQuestion, 0, count)
	for i := 0; i < count; i++ {
		concept := strings.TrimSpace(topic)
		if len(concepts) > 0 {
			concept = concepts[i%len(concepts)]
		}
		out = append(out, study.QuizQuestion{
			ID:            fmt.Sprintf("q%d", i+1),
			Question:      fmt.Sprintf("Explain your understanding of %s", concept),
			Type:          study.QuestionShortAnswer,
			CorrectAnswer: fmt.Sprintf("A clear explanation of %s", concept),
			Explanation:   fmt.Sprintf("Review %s and describe it in your own words.", concept),
			Points:        defaultPoints,
		})
	}
	return out
}

// extractObject returns the substring between the first '{' and its balanced
// closing brace. Brace depth is tracked outside JSON strings; if the text
// ends before the object closes, everything through the last '}' is used.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	// Unbalanced: take through the last closing brace, if any.
	end := strings.LastIndexByte(raw, '}')
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func clampCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > MaxQuestions {
		return MaxQuestions
	}
	return count
}
