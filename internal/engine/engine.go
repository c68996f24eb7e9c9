// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"issue-triage/internal/model"
	"issue-triage/internal/provider"
	"issue-triage/internal/store"
)

// ProviderResolver yields the adapter for one origin system. Satisfied by
// provider.Registry; mocked in tests.
type ProviderResolver interface {
	ForOrigin(origin model.Origin) (provider.Provider, error)
}

// Engine orchestrates the pull path (origin -> normalized issues -> store)
// and the push path (accumulated pending changes -> origin). All operations
// are invoked synchronously by an explicit request; there is no worker pool.
type Engine struct {
	store     store.Querier
	providers ProviderResolver
	logger    *slog.Logger
	now       func() time.Time

	// syncGroup collapses concurrent sync requests for the same repository
	// into one pull.
	syncGroup singleflight.Group
}

// New creates an Engine.
func New(q store.Querier, providers ProviderResolver, logger *slog.Logger) *Engine {
	return &Engine{
		store:     q,
		providers: providers,
		logger:    logger,
		now:       time.Now,
	}
}

// SyncRepo pulls one repository. It never returns an error: every failure is
// recorded on the audit trail and folded into the structured result. Raw
// origin error text stays in the audit record, not in the result.
func (e *Engine) SyncRepo(ctx context.Context, repoID int64) model.SyncResult {
	v, _, _ := e.syncGroup.Do(strconv.FormatInt(repoID, 10), func() (any, error) {
		return e.syncRepo(ctx, repoID), nil
	})
	return v.(model.SyncResult)
}

func (e *Engine) syncRepo(ctx context.Context, repoID int64) model.SyncResult {
	logger := e.logger.With("repository_id", repoID)
	failed := model.SyncResult{RepositoryID: repoID, Status: string(model.SyncFailed), Error: "sync failed"}

	repo, err := e.store.GetRepository(ctx, repoID)
	if err != nil {
		logger.Error("repository resolution failed", "error", err)
		return failed
	}
	logger = logger.With("owner", repo.Owner, "repo", repo.Slug, "origin", repo.Origin)

	auditLog, err := e.store.CreateSyncLog(ctx, uuid.New(), repo.ID)
	if err != nil {
		logger.Error("audit record creation failed", "error", err)
		return failed
	}

	// The marker is set to the attempt time, not to any issue's timestamp.
	// That tolerates origin clock skew and guarantees forward progress even
	// when the pull returns nothing.
	attemptedAt := e.now()

	fetched, err := e.pull(ctx, repo, attemptedAt)
	if err != nil {
		logger.Error("sync failed", "error", err)
		if ferr := e.store.FailSyncLog(ctx, auditLog.ID, err.Error()); ferr != nil {
			logger.Error("audit failure record failed", "error", ferr)
		}
		return failed
	}

	if err := e.store.CompleteSyncLog(ctx, auditLog.ID, fetched); err != nil {
		logger.Error("audit completion record failed", "error", err)
	}
	logger.Info("sync completed", "issues_fetched", fetched)
	return model.SyncResult{
		RepositoryID:  repo.ID,
		Status:        string(model.SyncCompleted),
		IssuesFetched: fetched,
	}
}

// pull fetches since the freshness marker, upserts every normalized issue in
// adapter order and advances the marker.
func (e *Engine) pull(ctx context.Context, repo model.TrackedRepository, attemptedAt time.Time) (int, error) {
	token, err := e.ResolveToken(ctx, repo.UserID, repo.Origin)
	if err != nil {
		return 0, fmt.Errorf("resolving token: %w", err)
	}
	p, err := e.providers.ForOrigin(repo.Origin)
	if err != nil {
		return 0, err
	}

	issues, err := p.FetchIssues(ctx, repo.Owner, repo.Slug, token, repo.LastSyncedAt)
	if err != nil {
		return 0, fmt.Errorf("fetching issues: %w", err)
	}

	for _, is := range issues {
		_, err := e.store.UpsertIssue(ctx, store.UpsertIssueParams{
			RepositoryID:    repo.ID,
			OriginID:        is.OriginID,
			Number:          is.Number,
			Title:           is.Title,
			Body:            is.Body,
			AuthorLogin:     is.AuthorLogin,
			AuthorAvatarURL: is.AuthorAvatarURL,
			State:           is.State,
			Labels:          is.Labels,
			Assignees:       is.Assignees,
			HTMLURL:         is.HTMLURL,
			OriginCreatedAt: is.OriginCreatedAt,
			OriginUpdatedAt: is.OriginUpdatedAt,
		})
		if err != nil {
			return 0, fmt.Errorf("upserting issue %s: %w", is.OriginID, err)
		}
	}

	if err := e.store.UpdateRepositoryLastSyncedAt(ctx, repo.ID, attemptedAt); err != nil {
		return 0, fmt.Errorf("advancing freshness marker: %w", err)
	}
	return len(issues), nil
}

// SyncAllRepos pulls every sync-enabled repository the user owns,
// sequentially. Sequential by design: it bounds concurrent load against
// origin rate limits and keeps audit ordering deterministic.
func (e *Engine) SyncAllRepos(ctx context.Context, userID int64) ([]model.SyncResult, error) {
	repos, err := e.store.ListEnabledRepositories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	results := make([]model.SyncResult, 0, len(repos))
	for _, repo := range repos {
		results = append(results, e.SyncRepo(ctx, repo.ID))
	}
	return results, nil
}
