// Package service owns the generation-job registry and the async job runner.
package service

import "errors"

// Sentinel errors for job operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation indicates a malformed or unsupported request at
	// submission time. No job is created.
	ErrValidation = errors.New("invalid generation request")

	// ErrNotFound indicates an unknown job ID.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition indicates an attempted mutation of a job whose
	// current state does not permit it (e.g. a terminal job). This is an
	// internal-consistency violation: it is logged and never silently ignored.
	ErrInvalidTransition = errors.New("invalid job transition")
)
