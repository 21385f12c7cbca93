package arq

import "errors"

var (
	// ErrAttemptBudget ends a master session early: a packet ran out of
	// transmit attempts and the link is treated as unrecoverable.
	ErrAttemptBudget = errors.New("attempt budget exhausted")
	// ErrIdleTimeout ends a slave session that heard nothing at all for the
	// configured idle window.
	ErrIdleTimeout = errors.New("idle timeout waiting for data")
)
