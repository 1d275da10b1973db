// Package store implements the file-backed, append-only artifact version store.
package store

import "errors"

// Sentinel errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the requested artifact or version does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrStoreUnavailable indicates the durable backing medium could not be
	// read or written. Jobs whose append fails with this transition to failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidArtifactID indicates an artifact ID that cannot name a
	// history file (empty or containing path separators).
	ErrInvalidArtifactID = errors.New("invalid artifact id")
)
