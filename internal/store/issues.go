// internal/store/issues.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"issue-triage/internal/model"
)

const issueColumns = `id, repository_id, origin_id, number, title, body,
	author_login, author_avatar_url, state, labels, assignees, html_url,
	origin_created_at, origin_updated_at, fetched_at`

func scanIssue(row interface{ Scan(...any) error }) (model.Issue, error) {
	var is model.Issue
	err := row.Scan(&is.ID, &is.RepositoryID, &is.OriginID, &is.Number,
		&is.Title, &is.Body, &is.AuthorLogin, &is.AuthorAvatarURL, &is.State,
		&is.Labels, &is.Assignees, &is.HTMLURL,
		&is.OriginCreatedAt, &is.OriginUpdatedAt, &is.FetchedAt)
	return is, err
}

// UpsertIssue inserts or updates one normalized issue on the
// (repository_id, origin_id) key. fetched_at is stamped by the database.
func (s *Store) UpsertIssue(ctx context.Context, arg UpsertIssueParams) (model.Issue, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO issues (repository_id, origin_id, number, title, body,
			author_login, author_avatar_url, state, labels, assignees, html_url,
			origin_created_at, origin_updated_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (repository_id, origin_id) DO UPDATE SET
			number = EXCLUDED.number,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			author_login = EXCLUDED.author_login,
			author_avatar_url = EXCLUDED.author_avatar_url,
			state = EXCLUDED.state,
			labels = EXCLUDED.labels,
			assignees = EXCLUDED.assignees,
			html_url = EXCLUDED.html_url,
			origin_created_at = EXCLUDED.origin_created_at,
			origin_updated_at = EXCLUDED.origin_updated_at,
			fetched_at = now()
		RETURNING `+issueColumns,
		arg.RepositoryID, arg.OriginID, arg.Number, arg.Title, arg.Body,
		arg.AuthorLogin, arg.AuthorAvatarURL, arg.State,
		arg.Labels, arg.Assignees, arg.HTMLURL,
		arg.OriginCreatedAt, arg.OriginUpdatedAt)
	return scanIssue(row)
}

// GetIssue fetches one issue by local id.
func (s *Store) GetIssue(ctx context.Context, id int64) (model.Issue, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	return scanIssue(row)
}

// UpdateIssueFacets mirrors label/assignee/state values that were applied
// upstream into the local row. The pull path owns every other field.
func (s *Store) UpdateIssueFacets(ctx context.Context, arg UpdateIssueFacetsParams) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE issues SET labels = $2, assignees = $3, state = $4 WHERE id = $1`,
		arg.ID, arg.Labels, arg.Assignees, arg.State)
	return err
}

// ListIssuesWithTriage lists issues from the user's repositories joined with
// the user's own triage overlay, newest origin activity first.
func (s *Store) ListIssuesWithTriage(ctx context.Context, arg ListIssuesParams) ([]model.IssueWithTriage, error) {
	q := `
		SELECT i.id, i.repository_id, i.origin_id, i.number, i.title, i.body,
			i.author_login, i.author_avatar_url, i.state, i.labels, i.assignees,
			i.html_url, i.origin_created_at, i.origin_updated_at, i.fetched_at,
			t.id, t.priority, t.snoozed_until, t.dismissed, t.batch_pending,
			t.pending_change, t.updated_at
		FROM issues i
		JOIN tracked_repositories r ON r.id = i.repository_id
		LEFT JOIN triage_states t ON t.issue_id = i.id AND t.user_id = $1
		WHERE r.user_id = $1`
	args := []any{arg.UserID}
	if arg.RepositoryID != nil {
		args = append(args, *arg.RepositoryID)
		q += fmt.Sprintf(" AND i.repository_id = $%d", len(args))
	}
	if arg.State != nil {
		args = append(args, *arg.State)
		q += fmt.Sprintf(" AND i.state = $%d", len(args))
	}
	q += " ORDER BY i.origin_updated_at DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IssueWithTriage
	for rows.Next() {
		var (
			it            model.IssueWithTriage
			triageID      *int64
			priority      *int16
			snoozedUntil  *time.Time
			dismissed     *bool
			batchPending  *bool
			pendingChange []byte
			updatedAt     *time.Time
		)
		err := rows.Scan(&it.Issue.ID, &it.Issue.RepositoryID, &it.Issue.OriginID,
			&it.Issue.Number, &it.Issue.Title, &it.Issue.Body,
			&it.Issue.AuthorLogin, &it.Issue.AuthorAvatarURL, &it.Issue.State,
			&it.Issue.Labels, &it.Issue.Assignees, &it.Issue.HTMLURL,
			&it.Issue.OriginCreatedAt, &it.Issue.OriginUpdatedAt, &it.Issue.FetchedAt,
			&triageID, &priority, &snoozedUntil, &dismissed, &batchPending,
			&pendingChange, &updatedAt)
		if err != nil {
			return nil, err
		}
		if triageID != nil {
			ts := model.TriageState{
				ID:           *triageID,
				IssueID:      it.Issue.ID,
				UserID:       arg.UserID,
				Priority:     priority,
				SnoozedUntil: snoozedUntil,
				Dismissed:    *dismissed,
				BatchPending: *batchPending,
				UpdatedAt:    *updatedAt,
			}
			if len(pendingChange) > 0 {
				var pc model.PendingChange
				if err := json.Unmarshal(pendingChange, &pc); err != nil {
					return nil, fmt.Errorf("decoding pending change for issue %d: %w", it.Issue.ID, err)
				}
				ts.PendingChange = &pc
			}
			it.Triage = &ts
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
