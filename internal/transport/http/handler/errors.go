package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/member-auth/internal/domain"
)

type errorMapping struct {
	target error
	status int
	code   string
	msg    string
}

// Checked in order; ErrInvalidOTP before ErrUnauthenticated keeps the two
// distinguishable for OTP callers, and ErrMemberIDTaken wraps ErrConflict so
// it must come first.
var errorMappings = []errorMapping{
	{domain.ErrBadRequest, http.StatusBadRequest, "bad_request", ""},
	{domain.ErrInvalidOTP, http.StatusUnauthorized, "invalid_otp", "invalid otp"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "unauthenticated"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{domain.ErrMemberIDTaken, http.StatusServiceUnavailable, "id_contention", "member id contention, retry shortly"},
	{domain.ErrConflict, http.StatusConflict, "conflict", "email already registered"},
	{domain.ErrExpired, http.StatusGone, "otp_expired", "otp expired"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "too many requests"},
	{domain.ErrCapacityExceeded, http.StatusServiceUnavailable, "capacity_exceeded", "member id capacity exceeded"},
}

// httpError maps a service error to its HTTP response. Unknown errors are
// logged and reported as a generic 500.
func httpError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.msg
			if msg == "" {
				msg = err.Error()
			}
			writeError(w, m.status, m.code, msg)
			return
		}
	}
	slog.Error("unhandled service error", "err", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}
