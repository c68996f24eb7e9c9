// internal/engine/token.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	custom_errors "issue-triage/internal/errors"
	"issue-triage/internal/model"
	"issue-triage/internal/store"
)

// ResolveToken is the ordered two-step credential lookup: an OAuth-issued
// token wins, a user-registered personal token is the fallback. No shared
// state; callable outside any request context. A missing token is terminal
// (custom_errors.ErrNoToken), not retryable.
func ResolveToken(ctx context.Context, q store.Querier, userID int64, origin model.Origin) (string, error) {
	for _, kind := range []model.TokenKind{model.TokenOAuth, model.TokenPAT} {
		token, err := q.GetToken(ctx, userID, origin, kind)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("looking up %s token: %w", kind, err)
		}
	}
	return "", custom_errors.ErrNoToken
}

// ResolveToken resolves a bearer token for one (user, origin) pair.
func (e *Engine) ResolveToken(ctx context.Context, userID int64, origin model.Origin) (string, error) {
	return ResolveToken(ctx, e.store, userID, origin)
}
