// internal/store/synclogs.go
package store

import (
	"context"

	"github.com/google/uuid"

	"issue-triage/internal/model"
)

// CreateSyncLog appends an audit record in the started state.
func (s *Store) CreateSyncLog(ctx context.Context, runID uuid.UUID, repositoryID int64) (model.SyncLog, error) {
	var l model.SyncLog
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_logs (run_id, repository_id, status, issues_fetched, started_at)
		VALUES ($1, $2, 'started', 0, now())
		RETURNING id, run_id, repository_id, status, issues_fetched, error, started_at, completed_at`,
		runID, repositoryID).
		Scan(&l.ID, &l.RunID, &l.RepositoryID, &l.Status, &l.IssuesFetched,
			&l.Error, &l.StartedAt, &l.CompletedAt)
	return l, err
}

// CompleteSyncLog transitions started -> completed. Guarded in SQL so a
// record never transitions twice.
func (s *Store) CompleteSyncLog(ctx context.Context, id int64, issuesFetched int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_logs
		SET status = 'completed', issues_fetched = $2, completed_at = now()
		WHERE id = $1 AND status = 'started'`, id, issuesFetched)
	return err
}

// FailSyncLog transitions started -> failed, retaining the raw error text.
// This is the only place origin error text is kept; it is never surfaced to
// end users.
func (s *Store) FailSyncLog(ctx context.Context, id int64, errText string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_logs
		SET status = 'failed', error = $2, completed_at = now()
		WHERE id = $1 AND status = 'started'`, id, errText)
	return err
}
