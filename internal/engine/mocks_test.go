// internal/engine/mocks_test.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"issue-triage/internal/model"
	"issue-triage/internal/provider"
	"issue-triage/internal/store"
)

// MockQuerier is a mock of the store.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) CreateUser(ctx context.Context, login string) (int64, error) {
	args := m.Called(ctx, login)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) ListUsersWithEnabledRepositories(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).([]int64), args.Error(1)
}
func (m *MockQuerier) GetToken(ctx context.Context, userID int64, origin model.Origin, kind model.TokenKind) (string, error) {
	args := m.Called(ctx, userID, origin, kind)
	return args.String(0), args.Error(1)
}
func (m *MockQuerier) SetToken(ctx context.Context, userID int64, origin model.Origin, kind model.TokenKind, token string) error {
	args := m.Called(ctx, userID, origin, kind, token)
	return args.Error(0)
}
func (m *MockQuerier) CreateRepository(ctx context.Context, arg store.CreateRepositoryParams) (model.TrackedRepository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.TrackedRepository), args.Error(1)
}
func (m *MockQuerier) GetRepository(ctx context.Context, id int64) (model.TrackedRepository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.TrackedRepository), args.Error(1)
}
func (m *MockQuerier) ListEnabledRepositories(ctx context.Context, userID int64) ([]model.TrackedRepository, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.TrackedRepository), args.Error(1)
}
func (m *MockQuerier) UpdateRepositorySettings(ctx context.Context, arg store.UpdateRepositorySettingsParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) UpdateRepositoryLastSyncedAt(ctx context.Context, id int64, syncedAt time.Time) error {
	args := m.Called(ctx, id, syncedAt)
	return args.Error(0)
}
func (m *MockQuerier) DeleteRepository(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}
func (m *MockQuerier) UpsertIssue(ctx context.Context, arg store.UpsertIssueParams) (model.Issue, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Issue), args.Error(1)
}
func (m *MockQuerier) GetIssue(ctx context.Context, id int64) (model.Issue, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Issue), args.Error(1)
}
func (m *MockQuerier) UpdateIssueFacets(ctx context.Context, arg store.UpdateIssueFacetsParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) ListIssuesWithTriage(ctx context.Context, arg store.ListIssuesParams) ([]model.IssueWithTriage, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]model.IssueWithTriage), args.Error(1)
}
func (m *MockQuerier) GetTriageState(ctx context.Context, issueID, userID int64) (model.TriageState, error) {
	args := m.Called(ctx, issueID, userID)
	return args.Get(0).(model.TriageState), args.Error(1)
}
func (m *MockQuerier) UpsertTriageState(ctx context.Context, arg store.UpsertTriageStateParams) (model.TriageState, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.TriageState), args.Error(1)
}
func (m *MockQuerier) ListBatchPending(ctx context.Context, userID int64) ([]model.TriageState, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.TriageState), args.Error(1)
}
func (m *MockQuerier) ClearPendingChange(ctx context.Context, triageID int64) error {
	args := m.Called(ctx, triageID)
	return args.Error(0)
}
func (m *MockQuerier) CountBatchPending(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreateSyncLog(ctx context.Context, runID uuid.UUID, repositoryID int64) (model.SyncLog, error) {
	args := m.Called(ctx, runID, repositoryID)
	return args.Get(0).(model.SyncLog), args.Error(1)
}
func (m *MockQuerier) CompleteSyncLog(ctx context.Context, id int64, issuesFetched int) error {
	args := m.Called(ctx, id, issuesFetched)
	return args.Error(0)
}
func (m *MockQuerier) FailSyncLog(ctx context.Context, id int64, errText string) error {
	args := m.Called(ctx, id, errText)
	return args.Error(0)
}

// MockProvider is a mock of the provider.Provider interface.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchIssues(ctx context.Context, owner, slug, token string, since *time.Time) ([]model.Issue, error) {
	args := m.Called(ctx, owner, slug, token, since)
	return args.Get(0).([]model.Issue), args.Error(1)
}
func (m *MockProvider) UpdateIssue(ctx context.Context, owner, slug string, number int, token string, change model.IssueChange) error {
	args := m.Called(ctx, owner, slug, number, token, change)
	return args.Error(0)
}
func (m *MockProvider) GetRepoPermission(ctx context.Context, owner, slug, token string) model.AccessLevel {
	args := m.Called(ctx, owner, slug, token)
	return args.Get(0).(model.AccessLevel)
}
func (m *MockProvider) FetchLabels(ctx context.Context, owner, slug, token string) ([]string, error) {
	args := m.Called(ctx, owner, slug, token)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockProvider) FetchCollaborators(ctx context.Context, owner, slug, token string) ([]string, error) {
	args := m.Called(ctx, owner, slug, token)
	return args.Get(0).([]string), args.Error(1)
}

// stubResolver hands every origin the same mock provider.
type stubResolver struct {
	p provider.Provider
}

func (s stubResolver) ForOrigin(model.Origin) (provider.Provider, error) {
	return s.p, nil
}
