// Package campaign runs broadcast sessions: it keeps the session registry,
// drives one dispatch loop per session and publishes progress events.
package campaign

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidInput wraps every start-request validation failure.
	ErrInvalidInput = errors.New("invalid campaign input")

	// ErrDuplicateSession is returned when registering an id twice.
	ErrDuplicateSession = errors.New("session already registered")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}
