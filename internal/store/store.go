// Package store persists routing decisions and per-call dispatch outcomes
// to SQLite. It is an audit sink only: routing never reads from it.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

//go:embed migrations/001_routing.sql
var routingSchema string

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite audit store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory, opens the database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already open database and applies the schema. The
// caller chooses the driver.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initPragmas(); err != nil {
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}
	if err := s.Migrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range splitSQL(routingSchema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement %d: %w\nSQL: %s", i+1, err, stmt)
		}
	}
	return tx.Commit()
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Warn().Err(err).Msg("wal checkpoint failed")
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// DECISIONS
// ═══════════════════════════════════════════════════════════════════════════════

// RecordDecision inserts d. A repeated request id replaces the earlier row.
func (s *Store) RecordDecision(ctx context.Context, d tracker.Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO routing_decisions
			(request_id, recorded_at, task_type, complexity, model_selected, confidence, success, attempts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RequestID,
		d.Timestamp.UTC().Format(timeLayout),
		string(d.TaskType),
		d.Complexity,
		d.ModelSelected,
		d.Confidence,
		boolToInt(d.Success),
		d.Attempts,
		d.Error,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decisions, newest first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]tracker.Decision, error) {
	if limit <= 0 {
		limit = tracker.DefaultDecisionCapacity
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, recorded_at, task_type, complexity, model_selected, confidence, success, attempts, error
		FROM routing_decisions
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []tracker.Decision{}
	for rows.Next() {
		var (
			d        tracker.Decision
			recorded string
			taskType string
			success  int
		)
		if err := rows.Scan(&d.RequestID, &recorded, &taskType, &d.Complexity, &d.ModelSelected, &d.Confidence, &success, &d.Attempts, &d.Error); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Timestamp, err = time.Parse(timeLayout, recorded)
		if err != nil {
			return nil, fmt.Errorf("parse decision time %q: %w", recorded, err)
		}
		d.TaskType = classifier.TaskType(taskType)
		d.Success = success != 0
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// ═══════════════════════════════════════════════════════════════════════════════
// OUTCOMES
// ═══════════════════════════════════════════════════════════════════════════════

// Outcome is one backend call.
type Outcome struct {
	Model      string
	Success    bool
	Elapsed    time.Duration
	Tokens     int
	RecordedAt time.Time
}

// ModelOutcome aggregates the outcomes of one model.
type ModelOutcome struct {
	Model            string  `json:"model"`
	Attempts         int     `json:"attempts"`
	Successes        int     `json:"successes"`
	SuccessRate      float64 `json:"success_rate"`
	TotalTimeSeconds float64 `json:"total_time_seconds"`
	TotalTokens      int     `json:"total_tokens"`
}

// RecordOutcome inserts one dispatch outcome.
func (s *Store) RecordOutcome(ctx context.Context, o Outcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_outcomes (model, success, elapsed_ms, tokens, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.Model,
		boolToInt(o.Success),
		o.Elapsed.Milliseconds(),
		o.Tokens,
		o.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ModelSummary aggregates outcomes per model, sorted by model name. Time and
// tokens count successful calls only, matching the in-memory tracker.
func (s *Store) ModelSummary(ctx context.Context) ([]ModelOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model,
		       COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(SUM(CASE WHEN success = 1 THEN elapsed_ms ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN success = 1 THEN tokens ELSE 0 END), 0)
		FROM dispatch_outcomes
		GROUP BY model
		ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	summary := []ModelOutcome{}
	for rows.Next() {
		var (
			m         ModelOutcome
			elapsedMS int64
		)
		if err := rows.Scan(&m.Model, &m.Attempts, &m.Successes, &elapsedMS, &m.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		m.TotalTimeSeconds = float64(elapsedMS) / 1000
		if m.Attempts > 0 {
			m.SuccessRate = float64(m.Successes) / float64(m.Attempts)
		}
		summary = append(summary, m)
	}
	return summary, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// splitSQL splits a schema into statements, dropping comment lines.
func splitSQL(schema string) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
