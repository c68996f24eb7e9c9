// internal/store/querier.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"issue-triage/internal/model"
)

// Querier is the persistence contract the engine and API depend on.
// Implemented by Store over pgx; mocked with testify/mock in engine tests.
// Every read and write is scoped by the owning user id where one applies;
// the tenancy boundary lives in the SQL, not in the callers.
type Querier interface {
	CreateUser(ctx context.Context, login string) (int64, error)
	ListUsersWithEnabledRepositories(ctx context.Context) ([]int64, error)

	GetToken(ctx context.Context, userID int64, origin model.Origin, kind model.TokenKind) (string, error)
	SetToken(ctx context.Context, userID int64, origin model.Origin, kind model.TokenKind, token string) error

	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.TrackedRepository, error)
	GetRepository(ctx context.Context, id int64) (model.TrackedRepository, error)
	ListEnabledRepositories(ctx context.Context, userID int64) ([]model.TrackedRepository, error)
	UpdateRepositorySettings(ctx context.Context, arg UpdateRepositorySettingsParams) error
	UpdateRepositoryLastSyncedAt(ctx context.Context, id int64, syncedAt time.Time) error
	DeleteRepository(ctx context.Context, id, userID int64) error

	UpsertIssue(ctx context.Context, arg UpsertIssueParams) (model.Issue, error)
	GetIssue(ctx context.Context, id int64) (model.Issue, error)
	UpdateIssueFacets(ctx context.Context, arg UpdateIssueFacetsParams) error
	ListIssuesWithTriage(ctx context.Context, arg ListIssuesParams) ([]model.IssueWithTriage, error)

	GetTriageState(ctx context.Context, issueID, userID int64) (model.TriageState, error)
	UpsertTriageState(ctx context.Context, arg UpsertTriageStateParams) (model.TriageState, error)
	ListBatchPending(ctx context.Context, userID int64) ([]model.TriageState, error)
	ClearPendingChange(ctx context.Context, triageID int64) error
	CountBatchPending(ctx context.Context, userID int64) (int64, error)

	CreateSyncLog(ctx context.Context, runID uuid.UUID, repositoryID int64) (model.SyncLog, error)
	CompleteSyncLog(ctx context.Context, id int64, issuesFetched int) error
	FailSyncLog(ctx context.Context, id int64, errText string) error
}

// CreateRepositoryParams connects one origin project for a user.
type CreateRepositoryParams struct {
	UserID      int64
	Origin      model.Origin
	Owner       string
	Slug        string
	AccessLevel model.AccessLevel
	SyncMode    model.SyncMode
}

// UpdateRepositorySettingsParams carries user-editable repository settings.
type UpdateRepositorySettingsParams struct {
	ID          int64
	UserID      int64
	SyncMode    model.SyncMode
	SyncEnabled bool
}

// UpsertIssueParams carries one normalized issue for the pull path. The
// conflict key is (RepositoryID, OriginID).
type UpsertIssueParams struct {
	RepositoryID    int64
	OriginID        string
	Number          int
	Title           string
	Body            string
	AuthorLogin     string
	AuthorAvatarURL string
	State           model.IssueState
	Labels          []string
	Assignees       []string
	HTMLURL         string
	OriginCreatedAt time.Time
	OriginUpdatedAt time.Time
}

// UpdateIssueFacetsParams mirrors upstream-applied label/assignee/state
// changes into the local issue row.
type UpdateIssueFacetsParams struct {
	ID        int64
	Labels    []string
	Assignees []string
	State     model.IssueState
}

// ListIssuesParams filters the issue listing. RepositoryID and State are
// optional; UserID scopes both the repositories and the triage overlay.
type ListIssuesParams struct {
	UserID       int64
	RepositoryID *int64
	State        *model.IssueState
}

// UpsertTriageStateParams writes one user's full triage overlay for an issue.
type UpsertTriageStateParams struct {
	IssueID       int64
	UserID        int64
	Priority      *int16
	SnoozedUntil  *time.Time
	Dismissed     bool
	BatchPending  bool
	PendingChange *model.PendingChange
}
