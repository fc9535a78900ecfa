package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// QuestionType classifies the format of a generated question.
type QuestionType string

const (
	TypeMCQ         QuestionType = "mcq"
	TypeTrueFalse   QuestionType = "true_false"
	TypeShortAnswer QuestionType = "short_answer"
	TypeScenario    QuestionType = "scenario"
	TypeOpenEnded   QuestionType = "open_ended"
)

// Level represents question difficulty.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// GeneratedTypes are the types the batch driver picks from.
var GeneratedTypes = []QuestionType{TypeMCQ, TypeTrueFalse, TypeShortAnswer, TypeScenario}

// Levels lists all difficulty levels.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// DefaultTopics are the topics used when none are configured.
var DefaultTopics = []string{"product_basics", "support_flow", "security_policy"}

// ValidType reports whether t is a known question type.
func ValidType(t QuestionType) bool {
	switch t {
	case TypeMCQ, TypeTrueFalse, TypeShortAnswer, TypeScenario, TypeOpenEnded:
		return true
	}
	return false
}

// ValidLevel reports whether l is a known difficulty level.
func ValidLevel(l Level) bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// RandomType picks a uniformly random question type.
func RandomType() QuestionType { return GeneratedTypes[rand.IntN(len(GeneratedTypes))] }

// RandomLevel picks a uniformly random level.
func RandomLevel() Level { return Levels[rand.IntN(len(Levels))] }

// RandomTopic picks a uniformly random topic from the given list,
// falling back to DefaultTopics when the list is empty.
func RandomTopic(topics []string) string {
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	return topics[rand.IntN(len(topics))]
}

// Question is a single quiz question. The Type field decides which of the
// optional fields are meaningful: mcq uses Choices and AnswerIndex,
// true_false uses Answer, short_answer and open_ended use Expected, and
// scenario uses ExpectedPoints and Rubric.
type Question struct {
	ID             int64        `json:"id,omitempty"`
	Type           QuestionType `json:"type"`
	Topic          string       `json:"topic"`
	Level          Level        `json:"level"`
	Stem           string       `json:"stem"`
	Choices        []string     `json:"choices,omitempty"`
	AnswerIndex    int          `json:"answer_index,omitempty"`
	Answer         *bool        `json:"answer,omitempty"`
	Expected       string       `json:"expected,omitempty"`
	ExpectedPoints []string     `json:"expected_points,omitempty"`
	Rubric         string       `json:"rubric,omitempty"`
	Rationale      string       `json:"rationale"`
	SourceModel    string       `json:"source_model,omitempty"`
	CreatedAt      time.Time    `json:"created_at,omitempty"`
}

// ValidationCode identifies why a question failed validation.
type ValidationCode string

const (
	MissingStem      ValidationCode = "missing_stem"
	IncompleteChoice ValidationCode = "incomplete_choice"
)

// ValidationError reports a structurally incomplete question.
type ValidationError struct {
	Code ValidationCode
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case MissingStem:
		return "question has no stem"
	case IncompleteChoice:
		return "mcq question is missing choices or answer index"
	}
	return "invalid question"
}

// Validate checks structural completeness. Only structure is checked, never
// whether the question makes sense: semantic review is a human job.
func (q *Question) Validate() error {
	if q.Stem == "" {
		return &ValidationError{Code: MissingStem}
	}
	if q.Type == TypeMCQ {
		if len(q.Choices) == 0 || q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
			return &ValidationError{Code: IncompleteChoice}
		}
	}
	return nil
}

// QuizAttempt records one completed quiz run by a user. Attempts are written
// once on submission and never mutated. QuestionsAttempted carries the
// client's per-question records; it is stored and returned verbatim,
// never interpreted.
type QuizAttempt struct {
	ID                 int64           `json:"id,omitempty"`
	UserID             string          `json:"user_id"`
	Topic              string          `json:"topic"`
	Difficulty         string          `json:"difficulty"`
	TotalQuestions     int             `json:"total_questions"`
	CorrectAnswers     int             `json:"correct_answers"`
	QuestionsAttempted json.RawMessage `json:"questions_attempted,omitempty"`
	Score              float64         `json:"score"`
	CompletedAt        time.Time       `json:"completed_at"`
}

// TopicStat summarizes attempt history for a single topic.
type TopicStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// UserStats aggregates a user's quiz history.
type UserStats struct {
	TotalQuizzes   int                  `json:"total_quizzes"`
	TotalQuestions int                  `json:"total_questions"`
	CorrectAnswers int                  `json:"correct_answers"`
	LastQuizDate   string               `json:"last_quiz_date,omitempty"`
	TopicStats     map[string]TopicStat `json:"topic_stats"`
}

// ErrNoQuestions marks an attempt submitted with a non-positive question
// count. It is the caller's mistake, not a storage failure.
var ErrNoQuestions = errors.New("attempt has no questions")

// Score computes the percentage score for an attempt, rounded to two
// decimal places. A zero-question attempt is rejected rather than allowed
// to divide by zero.
func Score(correct, total int) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("%w (total=%d)", ErrNoQuestions, total)
	}
	return math.Round(100*float64(correct)/float64(total)*100) / 100, nil
}
