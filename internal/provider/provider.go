// internal/provider/provider.go
package provider

import (
	"context"
	"log/slog"
	"time"

	custom_errors "issue-triage/internal/errors"
	"issue-triage/internal/model"
)

// Provider is the uniform capability contract one origin system implements.
// Origin systems disagree on pagination, state vocabulary, label mutation
// semantics and assignee addressing; adapters absorb all of that so the rest
// of the engine only sees the normalized shape.
type Provider interface {
	// FetchIssues returns the project's issues (never pull/merge requests) in
	// descending update-time order, paginating internally until a short page.
	// since is advisory: when set, only items updated after it are requested.
	// A mid-pagination failure yields the pages collected so far and a nil
	// error; the next sync catches up. A rejected token is returned as an
	// error so the caller can record a terminal failure.
	FetchIssues(ctx context.Context, owner, slug, token string, since *time.Time) ([]model.Issue, error)

	// UpdateIssue applies a structured change to one origin issue. Facets
	// (labels, assignees, state) are applied independently, best-effort; a
	// failure in one does not block the others. Errors are joined.
	UpdateIssue(ctx context.Context, owner, slug string, number int, token string, change model.IssueChange) error

	// GetRepoPermission resolves the caller's access level, defaulting to
	// read on any resolution failure.
	GetRepoPermission(ctx context.Context, owner, slug, token string) model.AccessLevel

	// FetchLabels lists assignable label names. Optional capability: an
	// adapter that cannot support it returns an empty list, not an error.
	FetchLabels(ctx context.Context, owner, slug, token string) ([]string, error)

	// FetchCollaborators lists assignable user logins. Optional capability,
	// same empty-not-error convention as FetchLabels.
	FetchCollaborators(ctx context.Context, owner, slug, token string) ([]string, error)
}

// Registry holds the closed set of adapters, constructed once at startup.
// Dispatch is a switch on the stored origin tag, never a per-call string
// lookup.
type Registry struct {
	github *GitHub
	gitlab *GitLab
}

// NewRegistry builds both adapters. Base URLs are empty for the public
// SaaS endpoints and overridden for self-hosted installs and tests.
func NewRegistry(logger *slog.Logger, githubBaseURL, gitlabBaseURL string) *Registry {
	return &Registry{
		github: NewGitHub(logger, githubBaseURL),
		gitlab: NewGitLab(logger, gitlabBaseURL),
	}
}

// ForOrigin returns the adapter for one origin system.
func (r *Registry) ForOrigin(origin model.Origin) (Provider, error) {
	switch origin {
	case model.OriginGitHub:
		return r.github, nil
	case model.OriginGitLab:
		return r.gitlab, nil
	default:
		return nil, &custom_errors.ErrUnknownOrigin{Origin: string(origin)}
	}
}
