package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/fleetstate/internal/identity"
	"github.com/roach88/fleetstate/internal/reconcile"
)

// Run describes one build run for the journal.
type Run struct {
	ID           string
	Mode         string
	DocumentPath string
	StartedAt    time.Time
	FinishedAt   time.Time
	WarningCount int
	Unverified   bool
	Error        string
}

// RecordRun writes one run and its per-entry outcomes in a single
// transaction. Inserting the same run id twice is a no-op, so a retried
// record call never duplicates history.
func (j *Journal) RecordRun(ctx context.Context, run Run, outcomes []reconcile.Outcome) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	unverified := 0
	if run.Unverified {
		unverified = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, mode, document_path, started_at, finished_at, entry_count, warning_count, unverified, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Mode,
		run.DocumentPath,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		len(outcomes),
		run.WarningCount,
		unverified,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for seq, outcome := range outcomes {
		digest, err := payloadDigest(outcome.Entry.Payload)
		if err != nil {
			return fmt.Errorf("record run entry %d: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_entries
			(run_id, seq, kind, name, live_id, action, status, payload_digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING
		`,
			run.ID,
			seq,
			string(outcome.Entry.Kind),
			outcome.Entry.Name,
			outcome.Entry.LiveID,
			string(outcome.Entry.Action),
			outcome.Status,
			digest,
		)
		if err != nil {
			return fmt.Errorf("record run entry %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// payloadDigest digests an entry payload over its canonical JSON form so
// two runs carrying the same desired state journal the same digest.
func payloadDigest(payload map[string]any) (string, error) {
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return identity.DigestJSON(identity.DomainPlanPayload, data)
}
