package journal

import (
	"context"
	"fmt"
	"time"
)

// EntryRecord is one journaled plan entry.
type EntryRecord struct {
	Seq           int
	Kind          string
	Name          string
	LiveID        string
	Action        string
	Status        string
	PayloadDigest string
}

// RunSummary is one journaled run with its entry count.
type RunSummary struct {
	Run        Run
	EntryCount int
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means no
// limit.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, mode, document_path, started_at, finished_at, entry_count, warning_count, unverified, error
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s                 RunSummary
			started, finished string
			unverified        int
		)
		if err := rows.Scan(&s.Run.ID, &s.Run.Mode, &s.Run.DocumentPath, &started, &finished,
			&s.EntryCount, &s.Run.WarningCount, &unverified, &s.Run.Error); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		s.Run.StartedAt, _ = time.Parse(time.RFC3339, started)
		s.Run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		s.Run.Unverified = unverified != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// RunEntries returns the plan entries journaled for one run, in plan order.
func (j *Journal) RunEntries(ctx context.Context, runID string) ([]EntryRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, name, live_id, action, status, payload_digest
		FROM run_entries
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run entries: %w", err)
	}
	defer rows.Close()

	var out []EntryRecord
	for rows.Next() {
		var e EntryRecord
		if err := rows.Scan(&e.Seq, &e.Kind, &e.Name, &e.LiveID, &e.Action, &e.Status, &e.PayloadDigest); err != nil {
			return nil, fmt.Errorf("run entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
