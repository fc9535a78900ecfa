package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/furkankasim16/knowledge-bot/internal/model"
)

// SaveAttempt records a completed quiz run. The score is recomputed from
// the counts so a client cannot submit an inflated one. The per-question
// records travel through as opaque JSON.
func (s *Store) SaveAttempt(a *model.QuizAttempt) error {
	score, err := model.Score(a.CorrectAnswers, a.TotalQuestions)
	if err != nil {
		return err
	}
	a.Score = score
	if a.CompletedAt.IsZero() {
		a.CompletedAt = time.Now().UTC()
	}
	attempted := []byte("[]")
	if len(a.QuestionsAttempted) > 0 {
		if !json.Valid(a.QuestionsAttempted) {
			return fmt.Errorf("%w: questions_attempted is not valid JSON", ErrInvalidAttempt)
		}
		attempted = a.QuestionsAttempted
	}

	res, err := s.db.Exec(
		`INSERT INTO quiz_attempts (user_id, topic, difficulty, total_questions, correct_answers, questions_attempted, score, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Topic, a.Difficulty, a.TotalQuestions, a.CorrectAnswers, string(attempted), a.Score, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// Attempts returns a user's quiz history, newest first.
func (s *Store) Attempts(userID string) ([]*model.QuizAttempt, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, topic, difficulty, total_questions, correct_answers, questions_attempted, score, completed_at
		 FROM quiz_attempts WHERE user_id = ? ORDER BY completed_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*model.QuizAttempt
	for rows.Next() {
		var (
			a         model.QuizAttempt
			attempted string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Topic, &a.Difficulty,
			&a.TotalQuestions, &a.CorrectAnswers, &attempted, &a.Score, &a.CompletedAt); err != nil {
			return nil, err
		}
		a.QuestionsAttempted = json.RawMessage(attempted)
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// UserStats aggregates the attempt history for one user.
func (s *Store) UserStats(userID string) (*model.UserStats, error) {
	stats := &model.UserStats{TopicStats: map[string]model.TopicStat{}}

	rows, err := s.db.Query(
		`SELECT topic, total_questions, correct_answers, completed_at
		 FROM quiz_attempts WHERE user_id = ? ORDER BY completed_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var last time.Time
	for rows.Next() {
		var (
			topic       string
			total       int
			correct     int
			completedAt time.Time
		)
		if err := rows.Scan(&topic, &total, &correct, &completedAt); err != nil {
			return nil, err
		}
		stats.TotalQuizzes++
		stats.TotalQuestions += total
		stats.CorrectAnswers += correct
		ts := stats.TopicStats[topic]
		ts.Total += total
		ts.Correct += correct
		stats.TopicStats[topic] = ts
		if completedAt.After(last) {
			last = completedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !last.IsZero() {
		stats.LastQuizDate = last.UTC().Format(time.RFC3339)
	}
	return stats, nil
}
