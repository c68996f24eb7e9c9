// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrNoToken means neither an OAuth token nor a personal token is registered
// for a (user, origin) pair. It is terminal for a sync, not retryable.
var ErrNoToken = errors.New("no access token registered for origin")

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrUnknownOrigin is returned when a repository row names an origin no
// adapter exists for.
type ErrUnknownOrigin struct {
	Origin string
}

func (e *ErrUnknownOrigin) Error() string {
	return fmt.Sprintf("unknown origin system: %q", e.Origin)
}
