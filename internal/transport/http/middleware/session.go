package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/member-auth/internal/domain"
)

type contextKey string

const IdentityKey contextKey = "identity"

type tokenValidator interface {
	ExtractSubject(token string) (string, bool)
	Validate(token, expectedSubject string) bool
}

type revocationChecker interface {
	Exists(ctx context.Context, token string) (bool, error)
}

type memberResolver interface {
	Get(ctx context.Context, memberID string) (*domain.Member, error)
}

// SessionGate resolves the session cookie into a domain.Identity on the
// request context. It never rejects a request: a missing, revoked or invalid
// token, or any lookup failure, leaves the request unauthenticated and
// RequireIdentity decides what that means for the route.
func SessionGate(cookieName string, tokens tokenValidator, revocations revocationChecker, members memberResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			if id := resolve(r.Context(), c.Value, tokens, revocations, members); id != nil {
				r = r.WithContext(context.WithValue(r.Context(), IdentityKey, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolve(ctx context.Context, token string, tokens tokenValidator, revocations revocationChecker, members memberResolver) *domain.Identity {
	revoked, err := revocations.Exists(ctx, token)
	if err != nil {
		slog.Warn("session gate: revocation check failed", "err", err)
		return nil
	}
	if revoked {
		return nil
	}
	subject, ok := tokens.ExtractSubject(token)
	if !ok {
		return nil
	}
	m, err := members.Get(ctx, subject)
	if err != nil {
		return nil
	}
	if !tokens.Validate(token, m.MemberID) {
		return nil
	}
	return domain.IdentityOf(m)
}

// RequireIdentity rejects requests the session gate did not authenticate.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the identity attached by SessionGate.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*domain.Identity)
	return id, ok && id != nil
}

// SessionToken returns the token from the session cookie, falling back to an
// Authorization Bearer header.
func SessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
