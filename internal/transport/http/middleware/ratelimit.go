package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BurstGuard is a per-IP token-bucket limiter with stale-entry cleanup. It
// absorbs floods in-process before they reach the shared sliding window.
type BurstGuard struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	burst    int
}

// NewBurstGuard creates a per-IP limiter: r requests/second, burst up to
// burst requests. Cleanup runs until ctx is cancelled.
func NewBurstGuard(ctx context.Context, r rate.Limit, burst int) *BurstGuard {
	bg := &BurstGuard{
		limiters: make(map[string]*ipLimiter),
		r:        r,
		burst:    burst,
	}
	go bg.cleanup(ctx, 5*time.Minute, 10*time.Minute)
	return bg
}

func (bg *BurstGuard) get(ip string) *rate.Limiter {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	if v, ok := bg.limiters[ip]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	l := rate.NewLimiter(bg.r, bg.burst)
	bg.limiters[ip] = &ipLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

func (bg *BurstGuard) cleanup(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bg.mu.Lock()
			for ip, v := range bg.limiters {
				if time.Since(v.lastSeen) > idle {
					delete(bg.limiters, ip)
				}
			}
			bg.mu.Unlock()
		}
	}
}

// Limit enforces the token bucket per client IP.
func (bg *BurstGuard) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !bg.get(realIP(r)).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type windowLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

type rejectionRecorder interface {
	RateLimited(scope string)
}

// IPFilter admits at most limit requests per client IP within window, using
// the shared sliding-window store. Store failures reject the request.
func IPFilter(limiter windowLimiter, limit int, window time.Duration, rec rejectionRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), "auth_rate_limit:"+realIP(r), limit, window)
			if err != nil {
				slog.Error("ip filter: limiter unavailable", "err", err)
				writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "rate limiter unavailable")
				return
			}
			if !ok {
				if rec != nil {
					rec.RateLimited("ip")
				}
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientIPKey struct{}

// ClientIP resolves the caller address once per request for the limiters.
// Forwarding headers are client-controlled, so they are honored only when
// trustProxy is set and a proxy in front of the service overwrites them.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, resolveIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// realIP returns the address resolved by ClientIP, or the RemoteAddr host
// when that middleware is not installed.
func realIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return resolveIP(r, false)
}

// resolveIP returns the first X-Forwarded-For entry, then X-Real-Ip, then the
// host part of RemoteAddr. Headers are skipped unless trustProxy is set.
func resolveIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
			return xr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
