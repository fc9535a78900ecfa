package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/furkankasim16/knowledge-bot/internal/model"
)

var (
	braceNonGreedy = regexp.MustCompile(`\{[\s\S]*?\}`)
	braceGreedy    = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ParseError reports that no valid question could be extracted from the
// model output. Raw always preserves the original text: it is needed for
// diagnostics and manual recovery, and must never be silently discarded.
type ParseError struct {
	Reason   string
	Raw      string
	Declined bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %s", e.Reason)
}

// Fallback supplies the request parameters used to backfill fields the
// model omitted.
type Fallback struct {
	Type  model.QuestionType
	Topic string
	Level model.Level
}

// ParseQuestion extracts a single question object from raw model output.
// Models wrap JSON in prose and code fences often enough that extraction
// runs as an ordered fallback chain:
//
//  1. strip code fences and whitespace
//  2. short-circuit on the decline sentinel
//  3. collect non-greedy brace-delimited candidates, longest first
//  4. fall back to the greedy outermost-brace match (model output
//     sometimes nests explanatory braces)
//  5. give up with a ParseError that keeps the raw text
func ParseQuestion(raw string, fb Fallback) (*model.Question, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if strings.Contains(cleaned, DeclineSentinel) {
		return nil, &ParseError{Reason: "model declined to generate", Raw: raw, Declined: true}
	}

	candidates := braceNonGreedy.FindAllString(cleaned, -1)
	if greedy := braceGreedy.FindString(cleaned); greedy != "" {
		candidates = append(candidates, greedy)
	}
	if len(candidates) == 0 {
		return nil, &ParseError{Reason: "no JSON object in output", Raw: raw}
	}

	// Longest first: the longest candidate is the most likely to be the
	// complete intended schema rather than a nested fragment.
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	for _, block := range candidates {
		var q model.Question
		if err := json.Unmarshal([]byte(block), &q); err != nil {
			continue
		}
		applyDefaults(&q, fb)
		return &q, nil
	}

	return nil, &ParseError{Reason: "no candidate parsed as valid JSON", Raw: raw}
}

// applyDefaults fills type-appropriate empty values for fields the model
// omitted. Lenient on purpose: models skip optional fields all the time.
func applyDefaults(q *model.Question, fb Fallback) {
	if q.Type == "" {
		q.Type = fb.Type
	}
	if q.Topic == "" {
		q.Topic = fb.Topic
	}
	if q.Level == "" {
		q.Level = fb.Level
	}
	if q.Choices == nil {
		q.Choices = []string{}
	}
	if q.AnswerIndex < 0 {
		q.AnswerIndex = 0
	}
}
