package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
)

// OpaqueTokenError collapses ErrExpired and ErrAlreadyUsed into ErrNotFound so
// callers that must not leak whether a token ever existed report a single state.
// Other errors pass through unchanged.
func OpaqueTokenError(err error) error {
	if errors.Is(err, ErrExpired) || errors.Is(err, ErrAlreadyUsed) {
		return ErrNotFound
	}
	return err
}
