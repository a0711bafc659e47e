package machine

import "errors"

// Sentinel errors for machine registry operations.
var (
	// ErrNotFound indicates the machine does not exist in the registry.
	ErrNotFound = errors.New("machine: not found")

	// ErrInvalidID indicates an empty or malformed machine identifier.
	ErrInvalidID = errors.New("machine: invalid id")
)
