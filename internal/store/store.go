// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"issue-triage/internal/model"
)

// Store implements Querier over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ Querier = (*Store)(nil)

// CreateUser inserts a user if the login is new and returns its id either way.
func (s *Store) CreateUser(ctx context.Context, login string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (login) VALUES ($1)
		ON CONFLICT (login) DO UPDATE SET login = EXCLUDED.login
		RETURNING id`, login).Scan(&id)
	return id, err
}

// ListUsersWithEnabledRepositories returns the ids of every user owning at
// least one sync-enabled repository. Drives the background sync ticker.
func (s *Store) ListUsersWithEnabledRepositories(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT user_id FROM tracked_repositories WHERE sync_enabled ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetToken returns the stored bearer token for one (user, origin, kind).
// pgx.ErrNoRows when none is registered.
func (s *Store) GetToken(ctx context.Context, userID int64, origin model.Origin, kind model.TokenKind) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx, `
		SELECT token FROM user_tokens
		WHERE user_id = $1 AND origin = $2 AND kind = $3`,
		userID, origin, kind).Scan(&token)
	return token, err
}

// SetToken registers or replaces a token.
func (s *Store) SetToken(ctx context.Context, userID int64, origin model.Origin, kind model.TokenKind, token string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_tokens (user_id, origin, kind, token)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, origin, kind) DO UPDATE SET token = EXCLUDED.token`,
		userID, origin, kind, token)
	return err
}

const repositoryColumns = `id, user_id, origin, owner, slug, access_level, sync_mode, sync_enabled, last_synced_at, created_at`

func (s *Store) scanRepository(row interface{ Scan(...any) error }) (model.TrackedRepository, error) {
	var r model.TrackedRepository
	err := row.Scan(&r.ID, &r.UserID, &r.Origin, &r.Owner, &r.Slug,
		&r.AccessLevel, &r.SyncMode, &r.SyncEnabled, &r.LastSyncedAt, &r.CreatedAt)
	return r, err
}

// CreateRepository connects one origin project. Sync is enabled by default.
func (s *Store) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.TrackedRepository, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tracked_repositories (user_id, origin, owner, slug, access_level, sync_mode, sync_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING `+repositoryColumns,
		arg.UserID, arg.Origin, arg.Owner, arg.Slug, arg.AccessLevel, arg.SyncMode)
	return s.scanRepository(row)
}

// GetRepository fetches one tracked repository by id.
func (s *Store) GetRepository(ctx context.Context, id int64) (model.TrackedRepository, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM tracked_repositories WHERE id = $1`, id)
	return s.scanRepository(row)
}

// ListEnabledRepositories returns the user's sync-enabled repositories in
// connect order, which fixes the audit ordering of a full sync.
func (s *Store) ListEnabledRepositories(ctx context.Context, userID int64) ([]model.TrackedRepository, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+repositoryColumns+` FROM tracked_repositories
		WHERE user_id = $1 AND sync_enabled ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.TrackedRepository
	for rows.Next() {
		r, err := s.scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// UpdateRepositorySettings applies user-editable settings, scoped to the owner.
func (s *Store) UpdateRepositorySettings(ctx context.Context, arg UpdateRepositorySettingsParams) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tracked_repositories SET sync_mode = $3, sync_enabled = $4
		WHERE id = $1 AND user_id = $2`,
		arg.ID, arg.UserID, arg.SyncMode, arg.SyncEnabled)
	return err
}

// UpdateRepositoryLastSyncedAt advances the freshness marker.
func (s *Store) UpdateRepositoryLastSyncedAt(ctx context.Context, id int64, syncedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tracked_repositories SET last_synced_at = $2 WHERE id = $1`, id, syncedAt)
	return err
}

// DeleteRepository disconnects a repository; issues cascade.
func (s *Store) DeleteRepository(ctx context.Context, id, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM tracked_repositories WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}
