// internal/engine/repos.go
package engine

import (
	"context"
	"fmt"

	"issue-triage/internal/model"
	"issue-triage/internal/provider"
	"issue-triage/internal/store"
)

// ConnectRepository opts a user into one origin project. The caller's access
// level is resolved once here and stored; it is advisory only.
func (e *Engine) ConnectRepository(ctx context.Context, userID int64, origin model.Origin, owner, slug string, mode model.SyncMode) (model.TrackedRepository, error) {
	if !origin.Valid() {
		return model.TrackedRepository{}, fmt.Errorf("unsupported origin %q", origin)
	}
	token, err := e.ResolveToken(ctx, userID, origin)
	if err != nil {
		return model.TrackedRepository{}, err
	}
	p, err := e.providers.ForOrigin(origin)
	if err != nil {
		return model.TrackedRepository{}, err
	}

	level := p.GetRepoPermission(ctx, owner, slug, token)
	repo, err := e.store.CreateRepository(ctx, store.CreateRepositoryParams{
		UserID:      userID,
		Origin:      origin,
		Owner:       owner,
		Slug:        slug,
		AccessLevel: level,
		SyncMode:    mode,
	})
	if err != nil {
		return model.TrackedRepository{}, fmt.Errorf("creating repository: %w", err)
	}
	e.logger.Info("repository connected", "repository_id", repo.ID, "origin", origin,
		"owner", owner, "repo", slug, "access_level", level)
	return repo, nil
}

// DisconnectRepository removes a tracked repository; its issues cascade.
func (e *Engine) DisconnectRepository(ctx context.Context, userID, repoID int64) error {
	return e.store.DeleteRepository(ctx, repoID, userID)
}

// RepoLabels lists assignable labels via the optional provider capability.
func (e *Engine) RepoLabels(ctx context.Context, userID, repoID int64) ([]string, error) {
	p, repo, token, err := e.resolveProviderForRepo(ctx, userID, repoID)
	if err != nil {
		return nil, err
	}
	return p.FetchLabels(ctx, repo.Owner, repo.Slug, token)
}

// RepoCollaborators lists assignable users via the optional provider capability.
func (e *Engine) RepoCollaborators(ctx context.Context, userID, repoID int64) ([]string, error) {
	p, repo, token, err := e.resolveProviderForRepo(ctx, userID, repoID)
	if err != nil {
		return nil, err
	}
	return p.FetchCollaborators(ctx, repo.Owner, repo.Slug, token)
}

func (e *Engine) resolveProviderForRepo(ctx context.Context, userID, repoID int64) (p provider.Provider, repo model.TrackedRepository, token string, err error) {
	repo, err = e.store.GetRepository(ctx, repoID)
	if err != nil {
		return nil, repo, "", fmt.Errorf("resolving repository: %w", err)
	}
	if repo.UserID != userID {
		return nil, repo, "", fmt.Errorf("repository %d is not owned by user %d", repo.ID, userID)
	}
	token, err = e.ResolveToken(ctx, repo.UserID, repo.Origin)
	if err != nil {
		return nil, repo, "", err
	}
	prov, err := e.providers.ForOrigin(repo.Origin)
	if err != nil {
		return nil, repo, "", err
	}
	return prov, repo, token, nil
}
