package interfaces

import (
	"context"

	"classsync/pkg/types"
)

// Authenticator resolves a credential presented at connection time into an
// identity. The relay trusts the resolved identity for the connection's
// lifetime and does not re-verify per event.
type Authenticator interface {
	// Authenticate validates token and returns the identity it carries.
	// Returns ErrInvalidToken for expired, malformed or unsigned tokens.
	Authenticate(ctx context.Context, token string) (*types.Identity, error)
}
