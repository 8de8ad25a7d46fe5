package lifecycle

import "errors"

// Failure taxonomy for lifecycle operations. Every operation converts
// collaborator failures into one of these at its own boundary; nothing
// else escapes to callers.
//
// ErrNotFound deliberately covers both missing records and records the
// requester isn't allowed to touch, so callers can't probe for
// existence.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidIdentifier   = errors.New("invalid sandbox identifier")
	ErrNotFound            = errors.New("sandbox not found")
	ErrNoOp                = errors.New("empty update")
	ErrInvalidPatch        = errors.New("update contains non-updatable fields")
	ErrInvalidVerdict      = errors.New("invalid review verdict")
	ErrProviderUnavailable = errors.New("sandbox provider unavailable")
	ErrPersistence         = errors.New("sandbox registry write failed")
)
