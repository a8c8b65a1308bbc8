// Package pkg holds small utilities shared across the server.
// This file defines the domain-level errors.
//
// Errors are plain values created with errors.New. Layers wrap them with
// fmt.Errorf("%w: ...") and callers compare by identity:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

// Domain errors. Services return them, the HTTP layer maps them to status
// codes in one place (see mapErrorToStatus).
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
)
