package domain

import "errors"

// Error taxonomy shared by services, adapters and the HTTP layer.
// Callers wrap these with context and match them with errors.Is.
var (
	// ErrNotFound covers both missing records and records owned by another
	// organization, so tenant boundaries look like nonexistence.
	ErrNotFound = errors.New("not found")

	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflict signals stale caller state, e.g. reassigning a route whose
	// technician already changed.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned by the directions integration. It is always
	// recovered by falling back to the local heuristic.
	ErrUnavailable = errors.New("external service unavailable")

	ErrInternal = errors.New("internal error")
)
