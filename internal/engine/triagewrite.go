// internal/engine/triagewrite.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"issue-triage/internal/model"
	"issue-triage/internal/store"
	"issue-triage/internal/triage"
)

// ApplyTriage is the server-side write path for one user-initiated triage
// change. mode selects live (write upstream now) or batch (fold into the
// pending-change accumulator).
func (e *Engine) ApplyTriage(ctx context.Context, userID, issueID int64, change model.PendingChange, mode model.SyncMode) error {
	if mode == model.SyncModeBatch {
		return e.StageBatch(ctx, userID, issueID, change)
	}
	return e.ApplyLive(ctx, userID, issueID, change)
}

// ApplyLive writes the provider-facing facets upstream immediately, mirrors
// them locally, and persists the local-only fields. A payload holding only
// local-only fields makes no origin call at all.
func (e *Engine) ApplyLive(ctx context.Context, userID, issueID int64, change model.PendingChange) error {
	issue, repo, err := e.resolveIssueRepo(ctx, userID, issueID)
	if err != nil {
		return err
	}

	if pc := change.ProviderChange(); !pc.IsZero() {
		token, err := e.ResolveToken(ctx, repo.UserID, repo.Origin)
		if err != nil {
			return err
		}
		p, err := e.providers.ForOrigin(repo.Origin)
		if err != nil {
			return err
		}
		if err := p.UpdateIssue(ctx, repo.Owner, repo.Slug, issue.Number, token, pc); err != nil {
			return fmt.Errorf("writing to origin: %w", err)
		}
		if err := e.mirrorChange(ctx, issue, pc); err != nil {
			return err
		}
	}

	existing, err := e.triageStateOrZero(ctx, issueID, userID)
	if err != nil {
		return err
	}
	_, err = e.store.UpsertTriageState(ctx, overlayTriageParams(existing, issueID, userID, change))
	return err
}

// StageBatch folds the change into the user's pending-change accumulator and
// marks the row batch-pending. Local-only fields also land on the row
// columns right away; only the provider-facing facets wait for the push.
func (e *Engine) StageBatch(ctx context.Context, userID, issueID int64, change model.PendingChange) error {
	if _, _, err := e.resolveIssueRepo(ctx, userID, issueID); err != nil {
		return err
	}

	existing, err := e.triageStateOrZero(ctx, issueID, userID)
	if err != nil {
		return err
	}

	var base model.PendingChange
	if existing.PendingChange != nil {
		base = *existing.PendingChange
	}
	merged := triage.Merge(base, change)

	params := overlayTriageParams(existing, issueID, userID, change)
	params.BatchPending = true
	params.PendingChange = &merged
	_, err = e.store.UpsertTriageState(ctx, params)
	return err
}

// CountBatchPending reports how many staged rows await the user's next push.
func (e *Engine) CountBatchPending(ctx context.Context, userID int64) (int64, error) {
	return e.store.CountBatchPending(ctx, userID)
}

func (e *Engine) resolveIssueRepo(ctx context.Context, userID, issueID int64) (model.Issue, model.TrackedRepository, error) {
	issue, err := e.store.GetIssue(ctx, issueID)
	if err != nil {
		return model.Issue{}, model.TrackedRepository{}, fmt.Errorf("resolving issue: %w", err)
	}
	repo, err := e.store.GetRepository(ctx, issue.RepositoryID)
	if err != nil {
		return model.Issue{}, model.TrackedRepository{}, fmt.Errorf("resolving repository: %w", err)
	}
	if repo.UserID != userID {
		return model.Issue{}, model.TrackedRepository{}, fmt.Errorf("repository %d is not owned by user %d", repo.ID, userID)
	}
	return issue, repo, nil
}

func (e *Engine) triageStateOrZero(ctx context.Context, issueID, userID int64) (model.TriageState, error) {
	ts, err := e.store.GetTriageState(ctx, issueID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TriageState{IssueID: issueID, UserID: userID}, nil
	}
	if err != nil {
		return model.TriageState{}, fmt.Errorf("resolving triage state: %w", err)
	}
	return ts, nil
}

// overlayTriageParams applies the change's local-only scalars over the
// existing row, preserving whatever is not mentioned. An explicit null
// clears the field.
func overlayTriageParams(existing model.TriageState, issueID, userID int64, change model.PendingChange) store.UpsertTriageStateParams {
	params := store.UpsertTriageStateParams{
		IssueID:       issueID,
		UserID:        userID,
		Priority:      existing.Priority,
		SnoozedUntil:  existing.SnoozedUntil,
		Dismissed:     existing.Dismissed,
		BatchPending:  existing.BatchPending,
		PendingChange: existing.PendingChange,
	}
	if change.Priority.Set {
		params.Priority = change.Priority.Value
	}
	if change.SnoozedUntil.Set {
		params.SnoozedUntil = change.SnoozedUntil.Value
	}
	if change.Dismissed.Set {
		params.Dismissed = change.Dismissed.Value != nil && *change.Dismissed.Value
	}
	return params
}
