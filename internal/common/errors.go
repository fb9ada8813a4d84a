// Package common defines shared constants and sentinel errors used across
// the framefeed client layers. Callers should use errors.Is to match these
// values; backends are responsible for mapping their native failures onto
// them.
package common

import "errors"

var (
	// ErrNotFound is returned when a requested row (post, profile,
	// notification) does not exist in the remote store.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert violates a server-side
	// uniqueness constraint, e.g. liking a post that is already liked.
	// It is resolved by a compensating write, never surfaced to the user.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned for rejected writes, e.g. deleting
	// another user's content, and for invalid or expired credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for writes rejected before reaching the
	// remote store (empty comment, oversized content).
	ErrValidation = errors.New("validation error")

	// ErrUnavailable is returned for transport-level failures: network
	// unreachable, timeout, dropped connection. Optimistic state must be
	// reverted when a mutation resolves with this error.
	ErrUnavailable = errors.New("service unavailable")

	// ErrClosed is returned when an operation is issued against a view or
	// subscription that has already been torn down.
	ErrClosed = errors.New("closed")
)
