package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/member-auth/internal/application/auth"
	"github.com/member-auth/internal/config"
	"github.com/member-auth/internal/infrastructure/metrics"
	"github.com/member-auth/internal/transport/http/handler"
	appmiddleware "github.com/member-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps holds everything the router wires into handlers and middleware.
type Deps struct {
	AuthService auth.Service
	Members     MemberReader
	Revocations RevocationChecker
	Tokens      TokenValidator
	IPLimiter   WindowLimiter
	BurstGuard  *appmiddleware.BurstGuard // optional
	Metrics     *metrics.Metrics          // optional
	Gatherer    prometheus.Gatherer       // optional, enables /metrics
	Probes      []handler.Probe           // readiness checks for /health-check/ready
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.ClientIP(cfg.TrustProxyHeaders))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	burst := func(next http.Handler) http.Handler { return next }
	if deps.BurstGuard != nil {
		burst = deps.BurstGuard.Limit
	}

	authH := handler.NewAuthHandler(deps.AuthService, handler.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
		MaxAge: cfg.JWTExpiry,
	})
	memberH := handler.NewMemberHandler(deps.Members)
	healthH := handler.NewHealthHandler(deps.Probes...)

	r.Get("/health-check/{action}", healthH.Ping)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Auth routes never read the caller identity, so the IP filter runs
		// first and the Session Gate only wraps protected routes.
		r.Route("/auth", func(r chi.Router) {
			r.Use(appmiddleware.IPFilter(deps.IPLimiter, cfg.AuthIPLimit, cfg.AuthIPWindow, deps.Metrics))

			r.With(burst).Post("/register", authH.Register)
			r.Post("/verify-email", authH.VerifyEmail)
			r.With(burst).Post("/login/send-otp", authH.SendOTP)
			r.Post("/login/verify-otp", authH.VerifyOTP)
			r.Post("/logout", authH.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.SessionGate(cfg.SessionCookieName, deps.Tokens, deps.Revocations, deps.Members))
			r.Use(appmiddleware.RequireIdentity)
			r.Get("/users/profile", memberH.Profile)
		})
	})

	return r
}
