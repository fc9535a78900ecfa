package store

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/furkankasim16/knowledge-bot/internal/model"
)

// SaveResult tells the caller whether a save actually inserted a row.
type SaveResult int

const (
	SavedNew SaveResult = iota
	SkippedDuplicate
)

// Fingerprint computes the deduplication hash of a question. Only the
// identity fields participate: two questions asking the same thing with
// different choices or rationale are still the same question. The keys
// are serialized in sorted order so the hash is stable across runs.
func Fingerprint(q *model.Question) string {
	canonical, _ := json.Marshal(map[string]string{
		"type":  string(q.Type),
		"topic": q.Topic,
		"level": string(q.Level),
		"stem":  q.Stem,
	})
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:])
}

// SaveQuestion inserts a question unless an identical one already exists.
// The UNIQUE constraint on hash decides: concurrent saves of the same
// question race inside SQLite, and exactly one wins.
func (s *Store) SaveQuestion(q *model.Question) (SaveResult, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return 0, fmt.Errorf("marshal choices: %w", err)
	}
	points, err := json.Marshal(q.ExpectedPoints)
	if err != nil {
		return 0, fmt.Errorf("marshal expected_points: %w", err)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	var answer sql.NullBool
	if q.Answer != nil {
		answer = sql.NullBool{Bool: *q.Answer, Valid: true}
	}

	res, err := s.db.Exec(
		`INSERT INTO questions (type, topic, level, stem, choices, answer_index, answer, expected, expected_points, rubric, rationale, source_model, hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		q.Type, q.Topic, q.Level, q.Stem, string(choices), q.AnswerIndex, answer,
		q.Expected, string(points), q.Rubric, q.Rationale, q.SourceModel,
		Fingerprint(q), q.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return SkippedDuplicate, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	q.ID = id
	return SavedNew, nil
}

const questionColumns = `id, type, topic, level, stem, choices, answer_index, answer, expected, expected_points, rubric, rationale, source_model, created_at`

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	var (
		q       model.Question
		choices string
		points  string
		answer  sql.NullBool
	)
	err := row.Scan(&q.ID, &q.Type, &q.Topic, &q.Level, &q.Stem, &choices,
		&q.AnswerIndex, &answer, &q.Expected, &points, &q.Rubric, &q.Rationale,
		&q.SourceModel, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return nil, fmt.Errorf("unmarshal choices: %w", err)
	}
	if err := json.Unmarshal([]byte(points), &q.ExpectedPoints); err != nil {
		return nil, fmt.Errorf("unmarshal expected_points: %w", err)
	}
	if answer.Valid {
		q.Answer = &answer.Bool
	}
	return &q, nil
}

// RandomQuestion picks a uniformly random stored question. Empty topic or
// level means no filtering on that field.
func (s *Store) RandomQuestion(topic string, level model.Level) (*model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if topic != "" {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	if level != "" {
		query += ` AND level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY RANDOM() LIMIT 1`

	q, err := scanQuestion(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// ListQuestions returns the most recently created questions, newest first.
func (s *Store) ListQuestions(limit int) ([]*model.Question, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []*model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question by id.
func (s *Store) DeleteQuestion(id int64) error {
	res, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionCount returns the number of stored questions.
func (s *Store) QuestionCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}
