package http

import (
	"context"
	"time"

	"github.com/member-auth/internal/domain"
)

// MemberReader is what the session gate and profile route need from the
// member store.
type MemberReader interface {
	Get(ctx context.Context, memberID string) (*domain.Member, error)
}

// RevocationChecker reports whether a token was revoked by logout.
type RevocationChecker interface {
	Exists(ctx context.Context, token string) (bool, error)
}

// TokenValidator decodes and validates session tokens.
type TokenValidator interface {
	ExtractSubject(token string) (string, bool)
	Validate(token, expectedSubject string) bool
}

// WindowLimiter is the shared sliding-window admission check.
type WindowLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}
