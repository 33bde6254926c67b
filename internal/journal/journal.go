// Package journal keeps an encrypted local history of batch runs.
//
// INVARIANTS:
// - The database is encrypted at rest with the machine key
// - A run row is written before any of its item rows
// - Journal failures never change the outcome of a batch
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/za7z/za7z/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL UNIQUE,
    mode            TEXT NOT NULL CHECK(mode IN ('compress', 'extract')),
    targets         TEXT NOT NULL,
    state           TEXT NOT NULL,
    total           INTEGER NOT NULL DEFAULT 0,
    succeeded       INTEGER NOT NULL DEFAULT 0,
    failed          INTEGER NOT NULL DEFAULT 0,
    deleted         INTEGER NOT NULL DEFAULT 0,
    started_at      TEXT NOT NULL,
    finished_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS items (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    idx             INTEGER NOT NULL,
    input_path      TEXT NOT NULL,
    output_path     TEXT NOT NULL,
    outcome         TEXT NOT NULL CHECK(outcome IN ('pending', 'success', 'failed')),
    error           TEXT,
    deleted         INTEGER NOT NULL DEFAULT 0,
    delete_error    TEXT,
    started_at      TEXT NOT NULL,
    finished_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);

CREATE TABLE IF NOT EXISTS journal_meta (
    key             TEXT PRIMARY KEY,
    value           TEXT NOT NULL
);

INSERT OR IGNORE INTO journal_meta (key, value) VALUES ('schema_version', '1');
`

// Journal records batch runs in an encrypted SQLite database.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  *zap.Logger
	now  func() time.Time
}

// Open opens the journal at path, encrypted with passphrase, and creates the
// schema if it does not exist.
func Open(ctx context.Context, path, passphrase string, log *zap.Logger) (*Journal, error) {
	db, err := openEncrypted(path, passphrase)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Journal{db: db, path: path, log: log, now: time.Now}, nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun inserts a run row and returns its id.
func (j *Journal) BeginRun(ctx context.Context, mode model.Mode, targets []string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	runID := uuid.New().String()
	query := `
		INSERT INTO runs (run_id, mode, targets, state, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query, runID, string(mode), strings.Join(targets, " "),
		string(model.StateProcessingItems), formatTime(j.now()))
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	j.log.Debug("journal run started", zap.String("run_id", runID))
	return runID, nil
}

// RecordItem stores the batch operation record of one item.
func (j *Journal) RecordItem(ctx context.Context, runID string, rec *model.ItemRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	query := `
		INSERT INTO items (run_id, idx, input_path, output_path, outcome, error, deleted, delete_error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query, runID, rec.Index, rec.InputPath, rec.OutputPath,
		string(rec.Outcome), nullString(rec.Error), rec.Deleted, nullString(rec.DeleteError),
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record item: %w", err)
	}
	return nil
}

// FinishRun stores the final state and counters of a run.
func (j *Journal) FinishRun(ctx context.Context, summary *model.BatchSummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = j.now()
	}
	query := `
		UPDATE runs
		SET state = ?, total = ?, succeeded = ?, failed = ?, deleted = ?, finished_at = ?
		WHERE run_id = ?
	`
	res, err := j.db.ExecContext(ctx, query, string(summary.FinalState), len(summary.Items),
		summary.Succeeded(), summary.Failed(), summary.Deleted(), formatTime(finished), summary.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish run: unknown run %s", summary.RunID)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*model.RunEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT run_id, mode, targets, state, total, succeeded, failed, deleted, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var entries []*model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var mode, state, started string
		var finished sql.NullString
		if err := rows.Scan(&e.RunID, &mode, &e.Targets, &state, &e.Total, &e.Succeeded,
			&e.Failed, &e.Deleted, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.Mode = model.Mode(mode)
		e.State = model.State(state)
		e.StartedAt = parseTime(started)
		if finished.Valid {
			e.FinishedAt = parseTime(finished.String)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return entries, nil
}

// Items returns the records of one run in processing order.
func (j *Journal) Items(ctx context.Context, runID string) ([]*model.ItemRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	query := `
		SELECT idx, input_path, output_path, outcome, error, deleted, delete_error, started_at, finished_at
		FROM items WHERE run_id = ? ORDER BY idx ASC
	`
	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var records []*model.ItemRecord
	for rows.Next() {
		var r model.ItemRecord
		var outcome, started string
		var errText, delErr, finished sql.NullString
		if err := rows.Scan(&r.Index, &r.InputPath, &r.OutputPath, &outcome, &errText,
			&r.Deleted, &delErr, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		r.Outcome = model.Outcome(outcome)
		r.Error = errText.String
		r.DeleteError = delErr.String
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
