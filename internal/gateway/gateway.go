// Package gateway defines the identity gateway the dispatch loop talks to:
// authenticate a credential set, send one message through the resulting
// handle, and release the handle.
package gateway

import (
	"context"
	"errors"

	"github.com/ashureev/campaignd/internal/domain"
)

// ErrTimeout is returned when a gateway call exceeds its deadline.
var ErrTimeout = errors.New("gateway call timed out")

// Handle is an authenticated sender identity.
type Handle interface {
	// Identity returns a printable identifier for logs.
	Identity() string
}

// Gateway authenticates sender identities and transmits messages.
// Implementations must honor ctx cancellation where they can.
type Gateway interface {
	Authenticate(ctx context.Context, cred domain.Credential) (Handle, error)
	Send(ctx context.Context, h Handle, destination, text string) error
	Release(ctx context.Context, h Handle) error
}
