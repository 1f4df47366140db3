package services

import "errors"

var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced post or user that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks bad credentials or a missing, malformed or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an authenticated caller lacking the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrUpstream marks a persistence or media store failure.
	ErrUpstream = errors.New("upstream error")
)
