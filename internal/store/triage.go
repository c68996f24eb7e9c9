// internal/store/triage.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"issue-triage/internal/model"
)

const triageColumns = `id, issue_id, user_id, priority, snoozed_until, dismissed,
	batch_pending, pending_change, updated_at`

func scanTriageState(row interface{ Scan(...any) error }) (model.TriageState, error) {
	var (
		ts      model.TriageState
		payload []byte
	)
	err := row.Scan(&ts.ID, &ts.IssueID, &ts.UserID, &ts.Priority, &ts.SnoozedUntil,
		&ts.Dismissed, &ts.BatchPending, &payload, &ts.UpdatedAt)
	if err != nil {
		return ts, err
	}
	if len(payload) > 0 {
		var pc model.PendingChange
		if err := json.Unmarshal(payload, &pc); err != nil {
			return ts, fmt.Errorf("decoding pending change %d: %w", ts.ID, err)
		}
		ts.PendingChange = &pc
	}
	return ts, nil
}

func encodePendingChange(pc *model.PendingChange) ([]byte, error) {
	if pc == nil {
		return nil, nil
	}
	return json.Marshal(pc)
}

// GetTriageState returns one user's overlay for an issue. pgx.ErrNoRows when
// the issue was never triaged.
func (s *Store) GetTriageState(ctx context.Context, issueID, userID int64) (model.TriageState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+triageColumns+` FROM triage_states
		WHERE issue_id = $1 AND user_id = $2`, issueID, userID)
	return scanTriageState(row)
}

// UpsertTriageState writes the full overlay on the (issue_id, user_id) key.
func (s *Store) UpsertTriageState(ctx context.Context, arg UpsertTriageStateParams) (model.TriageState, error) {
	payload, err := encodePendingChange(arg.PendingChange)
	if err != nil {
		return model.TriageState{}, fmt.Errorf("encoding pending change: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO triage_states (issue_id, user_id, priority, snoozed_until,
			dismissed, batch_pending, pending_change, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (issue_id, user_id) DO UPDATE SET
			priority = EXCLUDED.priority,
			snoozed_until = EXCLUDED.snoozed_until,
			dismissed = EXCLUDED.dismissed,
			batch_pending = EXCLUDED.batch_pending,
			pending_change = EXCLUDED.pending_change,
			updated_at = now()
		RETURNING `+triageColumns,
		arg.IssueID, arg.UserID, arg.Priority, arg.SnoozedUntil,
		arg.Dismissed, arg.BatchPending, payload)
	return scanTriageState(row)
}

// ListBatchPending returns the user's staged rows in staging order, which
// fixes the replay order of a batch push.
func (s *Store) ListBatchPending(ctx context.Context, userID int64) ([]model.TriageState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+triageColumns+` FROM triage_states
		WHERE user_id = $1 AND batch_pending ORDER BY updated_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []model.TriageState
	for rows.Next() {
		ts, err := scanTriageState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, ts)
	}
	return states, rows.Err()
}

// ClearPendingChange drops the accumulated payload and the pending flag,
// keeping the row and its local-only fields.
func (s *Store) ClearPendingChange(ctx context.Context, triageID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE triage_states
		SET batch_pending = FALSE, pending_change = NULL, updated_at = now()
		WHERE id = $1`, triageID)
	return err
}

// CountBatchPending counts the user's staged rows.
func (s *Store) CountBatchPending(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM triage_states WHERE user_id = $1 AND batch_pending`,
		userID).Scan(&n)
	return n, err
}
