// Package history keeps a durable ledger of reasoning runs and the
// feedback applied to them.
//
// The ledger lives in SQLite (modernc.org/sqlite, no cgo). Sessions
// themselves stay in memory; history only records what happened so that
// runs can be listed and inspected after their session is gone.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/pipeline"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// ─── Types ───────────────────────────────────────────────────────────────────

// Run status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Query           string    `json:"query"`
	Status          string    `json:"status"`
	Error           *string   `json:"error,omitempty"`
	NodeCount       int       `json:"node_count"`
	EdgeCount       int       `json:"edge_count"`
	FinalConfidence []float64 `json:"final_confidence,omitempty"`
	Verdict         string    `json:"verdict,omitempty"`
	CreatedAt       string    `json:"created_at"`
}

// Run is a run together with its stage trace and feedback.
type Run struct {
	RunSummary
	Stages   []pipeline.TraceEntry `json:"stages"`
	Feedback []Feedback            `json:"feedback,omitempty"`
}

// Feedback is one recorded feedback item.
type Feedback struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id"`
	Target    string  `json:"target"`
	TargetID  string  `json:"target_id"`
	Value     string  `json:"value"`
	Applied   bool    `json:"applied"`
	Error     *string `json:"error,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// RecordRunParams describes a finished run.
type RecordRunParams struct {
	SessionID       string
	Query           string
	Err             error
	NodeCount       int
	EdgeCount       int
	FinalConfidence []float64
	Verdict         string
	Trace           []pipeline.TraceEntry
}

// RecordFeedbackParams describes one feedback item.
type RecordFeedbackParams struct {
	SessionID string
	Target    string
	TargetID  string
	Value     any
	Err       error
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds history store configuration.
type Config struct {
	DSN        string
	MaxResults int
}

// DefaultConfig returns an in-memory ledger shared within the process.
func DefaultConfig() Config {
	return Config{
		DSN:        "file:asrgot-history?mode=memory&cache=shared",
		MaxResults: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the run ledger backed by SQLite.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New opens the database at cfg.DSN and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	db, err := openDB("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// one writer; also keeps a shared in-memory database alive
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id       TEXT    NOT NULL,
			query            TEXT    NOT NULL,
			status           TEXT    NOT NULL,
			error            TEXT,
			node_count       INTEGER NOT NULL DEFAULT 0,
			edge_count       INTEGER NOT NULL DEFAULT 0,
			final_confidence TEXT,
			verdict          TEXT    NOT NULL DEFAULT '',
			created_at       TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);

		CREATE TABLE IF NOT EXISTS stage_traces (
			run_id  INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			stage   INTEGER NOT NULL,
			name    TEXT    NOT NULL,
			summary TEXT    NOT NULL,
			metrics TEXT    NOT NULL,
			PRIMARY KEY (run_id, stage)
		);

		CREATE TABLE IF NOT EXISTS feedback (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT    NOT NULL,
			target     TEXT    NOT NULL,
			target_id  TEXT    NOT NULL,
			value      TEXT    NOT NULL,
			applied    INTEGER NOT NULL,
			error      TEXT,
			created_at TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_feedback_session ON feedback(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Runs ────────────────────────────────────────────────────────────────────

// RecordRun stores a finished run and its stage trace atomically.
func (s *Store) RecordRun(p RecordRunParams) (int64, error) {
	status, errText := StatusOK, errString(p.Err)
	if p.Err != nil {
		status = StatusError
	}
	var conf *string
	if len(p.FinalConfidence) > 0 {
		b, err := json.Marshal(p.FinalConfidence)
		if err != nil {
			return 0, fmt.Errorf("history: encode confidence: %w", err)
		}
		v := string(b)
		conf = &v
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("history: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO runs (session_id, query, status, error, node_count, edge_count, final_confidence, verdict, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.Query, status, errText, p.NodeCount, p.EdgeCount, conf, p.Verdict, Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: run id: %w", err)
	}

	for _, st := range p.Trace {
		metrics, err := json.Marshal(st.Metrics)
		if err != nil {
			return 0, fmt.Errorf("history: encode metrics for stage %d: %w", st.Stage, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO stage_traces (run_id, stage, name, summary, metrics) VALUES (?, ?, ?, ?, ?)`,
			id, st.Stage, st.Name, st.Summary, string(metrics),
		); err != nil {
			return 0, fmt.Errorf("history: insert stage %d: %w", st.Stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return id, nil
}

// RecentRuns returns the latest runs, newest first. A non-positive limit
// uses the configured default.
func (s *Store) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, query, status, error, node_count, edge_count, final_confidence, verdict, created_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRun returns a run with its stage trace and the feedback recorded
// against its session.
func (s *Store) GetRun(id int64) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, query, status, error, node_count, edge_count, final_confidence, verdict, created_at
		 FROM runs WHERE id = ?`, id,
	)
	summary, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("run %d not found", id)
	}
	if err != nil {
		return nil, err
	}

	run := &Run{RunSummary: *summary, Stages: []pipeline.TraceEntry{}}
	rows, err := s.db.Query(
		`SELECT stage, name, summary, metrics FROM stage_traces WHERE run_id = ? ORDER BY stage`, id,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var st pipeline.TraceEntry
		var metrics string
		if err := rows.Scan(&st.Stage, &st.Name, &st.Summary, &metrics); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metrics), &st.Metrics); err != nil {
			return nil, fmt.Errorf("history: decode metrics for stage %d: %w", st.Stage, err)
		}
		run.Stages = append(run.Stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	run.Feedback, err = s.FeedbackFor(run.SessionID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunSummary, error) {
	var r RunSummary
	var conf sql.NullString
	if err := row.Scan(&r.ID, &r.SessionID, &r.Query, &r.Status, &r.Error,
		&r.NodeCount, &r.EdgeCount, &conf, &r.Verdict, &r.CreatedAt); err != nil {
		return nil, err
	}
	if conf.Valid {
		if err := json.Unmarshal([]byte(conf.String), &r.FinalConfidence); err != nil {
			return nil, fmt.Errorf("history: decode confidence: %w", err)
		}
	}
	return &r, nil
}

// ─── Feedback ────────────────────────────────────────────────────────────────

// RecordFeedback stores one feedback item.
func (s *Store) RecordFeedback(p RecordFeedbackParams) (int64, error) {
	value, err := json.Marshal(p.Value)
	if err != nil {
		return 0, fmt.Errorf("history: encode feedback value: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO feedback (session_id, target, target_id, value, applied, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.Target, p.TargetID, string(value), p.Err == nil, errString(p.Err), Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert feedback: %w", err)
	}
	return res.LastInsertId()
}

// FeedbackFor returns the feedback recorded for a session, oldest first.
func (s *Store) FeedbackFor(sessionID string) ([]Feedback, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, target, target_id, value, applied, error, created_at
		 FROM feedback WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Target, &f.TargetID, &f.Value, &f.Applied, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return timeNow().UTC().Format("2006-01-02 15:04:05")
}
