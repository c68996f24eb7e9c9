// internal/engine/push.go
package engine

import (
	"context"
	"fmt"

	"issue-triage/internal/model"
	"issue-triage/internal/store"
)

// PushBatchChanges replays every staged pending change the user has
// accumulated against its origin system. Rows are independent: a failure on
// one increments the failure counter and the walk continues. Only the
// pushed/failed counts are reported; per-row error identity is deliberately
// dropped (errors are logged and the staged row stays pending for a retry).
func (e *Engine) PushBatchChanges(ctx context.Context, userID int64) (model.PushResult, error) {
	states, err := e.store.ListBatchPending(ctx, userID)
	if err != nil {
		return model.PushResult{}, fmt.Errorf("listing pending changes: %w", err)
	}

	var result model.PushResult
	for _, ts := range states {
		if err := e.pushOne(ctx, ts); err != nil {
			e.logger.Warn("batch push row failed", "triage_id", ts.ID, "issue_id", ts.IssueID, "error", err)
			result.Failed++
			continue
		}
		result.Pushed++
	}
	e.logger.Info("batch push finished", "user_id", userID, "pushed", result.Pushed, "failed", result.Failed)
	return result, nil
}

func (e *Engine) pushOne(ctx context.Context, ts model.TriageState) error {
	// Local-only fields were applied to the row when staged; a payload that
	// derives to an empty provider change needs no origin call at all.
	var change model.IssueChange
	if ts.PendingChange != nil {
		change = ts.PendingChange.ProviderChange()
	}
	if change.IsZero() {
		return e.store.ClearPendingChange(ctx, ts.ID)
	}

	issue, err := e.store.GetIssue(ctx, ts.IssueID)
	if err != nil {
		return fmt.Errorf("resolving issue: %w", err)
	}
	repo, err := e.store.GetRepository(ctx, issue.RepositoryID)
	if err != nil {
		return fmt.Errorf("resolving repository: %w", err)
	}
	token, err := e.ResolveToken(ctx, repo.UserID, repo.Origin)
	if err != nil {
		return err
	}
	p, err := e.providers.ForOrigin(repo.Origin)
	if err != nil {
		return err
	}

	if err := p.UpdateIssue(ctx, repo.Owner, repo.Slug, issue.Number, token, change); err != nil {
		return fmt.Errorf("writing to origin: %w", err)
	}

	if err := e.mirrorChange(ctx, issue, change); err != nil {
		return err
	}
	return e.store.ClearPendingChange(ctx, ts.ID)
}

// mirrorChange reflects a change that was successfully written upstream into
// the local issue row, so the view stays consistent until the next pull.
func (e *Engine) mirrorChange(ctx context.Context, issue model.Issue, change model.IssueChange) error {
	arg := store.UpdateIssueFacetsParams{
		ID:        issue.ID,
		Labels:    model.ApplySetChange(issue.Labels, change.AddLabels, change.RemoveLabels),
		Assignees: model.ApplySetChange(issue.Assignees, change.AddAssignees, change.RemoveAssignees),
		State:     issue.State,
	}
	if change.State != nil {
		arg.State = *change.State
	}
	if err := e.store.UpdateIssueFacets(ctx, arg); err != nil {
		return fmt.Errorf("mirroring change: %w", err)
	}
	return nil
}
