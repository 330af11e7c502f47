// Package history keeps a local SQLite log of completed practice attempts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/speechcraft/internal/feedback"
	_ "modernc.org/sqlite"
)

// Attempt is one completed practice run.
type Attempt struct {
	ID             string
	ScenarioID     string
	ScenarioTitle  string
	Transcript     string
	Feedback       feedback.Result
	ElapsedSeconds int
	CreatedAt      time.Time
}

// Store wraps the attempts table.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open creates the database file if needed and ensures the schema exists.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    scenario_id TEXT NOT NULL,
    scenario_title TEXT NOT NULL,
    score REAL NOT NULL,
    transcript TEXT NOT NULL,
    feedback TEXT NOT NULL,
    elapsed_seconds INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts an attempt, assigning ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, attempt Attempt) (Attempt, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.clock()
	}
	attempt.CreatedAt = attempt.CreatedAt.UTC()

	payload, err := json.Marshal(attempt.Feedback)
	if err != nil {
		return Attempt{}, fmt.Errorf("encode feedback: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts(id, scenario_id, scenario_title, score, transcript, feedback, elapsed_seconds, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.ScenarioID, attempt.ScenarioTitle, attempt.Feedback.Score,
		attempt.Transcript, string(payload), attempt.ElapsedSeconds, attempt.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	if s.log != nil {
		s.log.Debug("attempt recorded", slog.String("id", attempt.ID), slog.String("scenario", attempt.ScenarioID))
	}
	return attempt, nil
}

// List returns up to limit attempts, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Attempt, error) {
	query := `SELECT id, scenario_id, scenario_title, transcript, feedback, elapsed_seconds, created_at
	          FROM attempts ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a         Attempt
			payload   string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.ScenarioID, &a.ScenarioTitle, &a.Transcript, &payload, &a.ElapsedSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &a.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback for %s: %w", a.ID, err)
		}
		a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
