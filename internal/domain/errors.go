package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrBadRequest       = errors.New("bad request")
	ErrExpired          = errors.New("otp expired")
	ErrInvalidOTP       = errors.New("invalid otp")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrCapacityExceeded = errors.New("member id capacity exceeded")
)

// ErrMemberIDTaken is returned by the member store when a generated id
// collides with an existing member. Registration retries on it.
var ErrMemberIDTaken = fmt.Errorf("member id taken: %w", ErrConflict)
