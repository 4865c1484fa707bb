package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartlane/cartlane/internal/auth"
	"github.com/cartlane/cartlane/internal/domain"
	"github.com/cartlane/cartlane/internal/store"
)

// ErrUnauthenticated marks handshake authentication failures. Fatal to the
// connection: it is closed, never retried server-side.
var ErrUnauthenticated = errors.New("authentication failed")

// Gate validates the handshake credential and resolves it to a user record.
// It runs exactly once per connection, before any event handlers are wired.
type Gate struct {
	signer *auth.Signer
	repo   store.Repository
}

// NewGate creates a handshake gate.
func NewGate(signer *auth.Signer, repo store.Repository) *Gate {
	return &Gate{signer: signer, repo: repo}
}

// Authenticate verifies the bearer token and loads the corresponding user.
func (g *Gate) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	userID, err := g.signer.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: bad token", ErrUnauthenticated)
	}

	user, err := g.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user %s", ErrUnauthenticated, userID)
	}

	return user, nil
}
