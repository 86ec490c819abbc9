package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vaakya-labs/anuvadam/internal/engine"
	"github.com/vaakya-labs/anuvadam/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS engine_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	engine TEXT NOT NULL,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	segments INTEGER NOT NULL,
	state TEXT NOT NULL,
	quality TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_engine_runs_job ON engine_runs(job_id);

CREATE TABLE IF NOT EXISTS feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL DEFAULT '',
	engine TEXT NOT NULL DEFAULT '',
	source_text TEXT NOT NULL,
	engine_text TEXT NOT NULL,
	corrected_text TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore records finished engine runs and reviewer feedback. It
// satisfies jobs.Recorder.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, rec jobs.RunRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO engine_runs (job_id, engine, source, target, segments, state, quality, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.Engine,
		rec.Source,
		rec.Target,
		rec.Segments,
		string(rec.State),
		string(rec.Quality),
		rec.Error,
		rec.DurationMS,
	)
	return err
}

// ListRuns returns the most recent runs for a job, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, jobID string) ([]jobs.RunRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, engine, source, target, segments, state, quality, error, duration_ms
		 FROM engine_runs
		 WHERE job_id = ?
		 ORDER BY id DESC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]jobs.RunRecord, 0)
	for rows.Next() {
		var rec jobs.RunRecord
		var state, quality string
		if err := rows.Scan(
			&rec.JobID,
			&rec.Engine,
			&rec.Source,
			&rec.Target,
			&rec.Segments,
			&state,
			&quality,
			&rec.Error,
			&rec.DurationMS,
		); err != nil {
			return nil, err
		}
		rec.State = jobs.State(state)
		rec.Quality = engine.Quality(quality)
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// FeedbackEntry is a reviewer's correction of one translated segment.
// Corrections feed future glossary updates.
type FeedbackEntry struct {
	ID            int64     `json:"id"`
	JobID         string    `json:"job_id,omitempty"`
	Engine        string    `json:"engine,omitempty"`
	SourceText    string    `json:"source_text"`
	EngineText    string    `json:"engine_text"`
	CorrectedText string    `json:"corrected_text"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, entry FeedbackEntry) (int64, error) {
	if strings.TrimSpace(entry.SourceText) == "" {
		return 0, fmt.Errorf("source text is required")
	}
	if strings.TrimSpace(entry.CorrectedText) == "" {
		return 0, fmt.Errorf("corrected text is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feedback (job_id, engine, source_text, engine_text, corrected_text)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.JobID,
		entry.Engine,
		entry.SourceText,
		entry.EngineText,
		entry.CorrectedText,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, limit int) ([]FeedbackEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, engine, source_text, engine_text, corrected_text, created_at
		 FROM feedback
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]FeedbackEntry, 0)
	for rows.Next() {
		var entry FeedbackEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.JobID,
			&entry.Engine,
			&entry.SourceText,
			&entry.EngineText,
			&entry.CorrectedText,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
