// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Origin identifies which external tracker owns a repository's issues.
// The set is closed; adapters are selected once at connect time.
type Origin string

const (
	OriginGitHub Origin = "github"
	OriginGitLab Origin = "gitlab"
)

// Valid reports whether o is one of the supported origins.
func (o Origin) Valid() bool {
	return o == OriginGitHub || o == OriginGitLab
}

// AccessLevel is the caller's resolved permission on an origin repository.
// It is advisory only; the origin remains the authority on every write.
type AccessLevel string

const (
	AccessAdmin AccessLevel = "admin"
	AccessWrite AccessLevel = "write"
	AccessRead  AccessLevel = "read"
)

// SyncMode selects whether triage writes go upstream immediately or are
// staged for an explicit batch push.
type SyncMode string

const (
	SyncModeLive  SyncMode = "live"
	SyncModeBatch SyncMode = "batch"
)

// IssueState is the normalized lifecycle state. GitLab's "opened" is folded
// into "open" by its adapter.
type IssueState string

const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// TokenKind orders credential resolution: an OAuth-issued token is preferred,
// a user-registered personal token is the fallback.
type TokenKind string

const (
	TokenOAuth TokenKind = "oauth"
	TokenPAT   TokenKind = "pat"
)

// SyncStatus is the audit-record lifecycle. Transitions are strictly
// started -> completed or started -> failed.
type SyncStatus string

const (
	SyncStarted   SyncStatus = "started"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// TrackedRepository is one origin project a user has connected.
type TrackedRepository struct {
	ID           int64
	UserID       int64
	Origin       Origin
	Owner        string
	Slug         string
	AccessLevel  AccessLevel
	SyncMode     SyncMode
	SyncEnabled  bool
	LastSyncedAt *time.Time
	CreatedAt    time.Time
}

// Issue is the engine's canonical, provider-agnostic issue shape.
// (RepositoryID, OriginID) is the upsert key; Number is the user-visible
// sequence number and is not a stable identifier across API calls.
type Issue struct {
	ID              int64
	RepositoryID    int64
	OriginID        string
	Number          int
	Title           string
	Body            string
	AuthorLogin     string
	AuthorAvatarURL string
	State           IssueState
	Labels          []string
	Assignees       []string
	HTMLURL         string
	OriginCreatedAt time.Time
	OriginUpdatedAt time.Time
	FetchedAt       time.Time
}

// TriageState is one user's private overlay on a shared issue. Priority,
// SnoozedUntil and Dismissed never cross the trust boundary to the origin.
type TriageState struct {
	ID            int64
	IssueID       int64
	UserID        int64
	Priority      *int16
	SnoozedUntil  *time.Time
	Dismissed     bool
	BatchPending  bool
	PendingChange *PendingChange
	UpdatedAt     time.Time
}

// IssueWithTriage joins an issue with the calling user's triage overlay,
// which is absent when the user never triaged the issue.
type IssueWithTriage struct {
	Issue  Issue
	Triage *TriageState
}

// SyncLog is one append-only audit record per pull attempt.
type SyncLog struct {
	ID            int64
	RunID         uuid.UUID
	RepositoryID  int64
	Status        SyncStatus
	IssuesFetched int
	Error         *string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// SyncResult is the caller-facing outcome of one repository pull.
type SyncResult struct {
	RepositoryID  int64  `json:"repositoryId"`
	Status        string `json:"status"`
	IssuesFetched int    `json:"issuesFetched"`
	Error         string `json:"error,omitempty"`
}

// PushResult summarizes a batch push. Per-row error identity is
// intentionally not reported.
type PushResult struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}
