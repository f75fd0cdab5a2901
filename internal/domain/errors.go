package domain

import "errors"

var (
	// ErrUpstreamUnavailable marks a transient upstream failure. Sync steps
	// absorb it, log, and retry on the next scheduled pass.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound marks a referential miss: the upstream or the store has no
	// record for the requested key. Callers skip the individual record and
	// continue the batch.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists surfaces a unique-constraint violation. Duplicate
	// creates are a semantic anomaly, not a hard error.
	ErrAlreadyExists = errors.New("already exists")
)
