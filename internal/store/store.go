// Package store persists generated questions and quiz attempts in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidAttempt marks an attempt the caller submitted malformed.
var ErrInvalidAttempt = errors.New("store: invalid attempt")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		topic TEXT NOT NULL,
		level TEXT NOT NULL,
		stem TEXT NOT NULL,
		choices TEXT NOT NULL DEFAULT '[]',
		answer_index INTEGER NOT NULL DEFAULT 0,
		answer INTEGER,
		expected TEXT NOT NULL DEFAULT '',
		expected_points TEXT NOT NULL DEFAULT '[]',
		rubric TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		source_model TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_questions_topic_level ON questions(topic, level);

	CREATE TABLE IF NOT EXISTS quiz_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		total_questions INTEGER NOT NULL,
		correct_answers INTEGER NOT NULL,
		questions_attempted TEXT NOT NULL DEFAULT '[]',
		score REAL NOT NULL,
		completed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_user ON quiz_attempts(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
