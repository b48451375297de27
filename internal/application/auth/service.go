// Package auth implements OTP-based registration, login and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/member-auth/internal/application/memberid"
	"github.com/member-auth/internal/domain"
	jwtinfra "github.com/member-auth/internal/infrastructure/jwt"
	"github.com/member-auth/internal/pkg/otp"
	"github.com/sethvargo/go-retry"
)

// Timings and admission limits for the flows.
const (
	RegistrationOTPTTL = 5 * time.Minute
	LoginOTPTTL        = time.Minute
	MaxRevocationTTL   = 24 * time.Hour

	RequestOTPLimit = 5
	VerifyOTPLimit  = 10
	LogoutLimit     = 10
	LimitWindow     = 15 * time.Minute

	// idAttempts bounds generate-and-insert when concurrent registrations
	// race for the same member id. The backoff doubles from idBackoff to give
	// the prefix index time to catch up.
	idAttempts = 4
	idBackoff  = 50 * time.Millisecond
)

// Operation names. They prefix rate-limit keys and label metrics.
const (
	OpStartRegistration    = "register"
	OpCompleteRegistration = "verify-email"
	OpRequestOTP           = "request-otp"
	OpVerifyOTP            = "verify-otp"
	OpLogout               = "logout"
)

// Registration is a validated registration request.
type Registration struct {
	Email     string
	FullName  string
	Contact   string
	BirthDate time.Time
}

type Service interface {
	StartRegistration(ctx context.Context, r Registration) error
	CompleteRegistration(ctx context.Context, email, submittedOTP string) (string, *domain.Member, error)
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, submittedOTP string) (string, error)
	Logout(ctx context.Context, token string) error
}

type memberStore interface {
	Get(ctx context.Context, memberID string) (*domain.Member, error)
	GetByEmail(ctx context.Context, email string) (*domain.Member, error)
	Create(ctx context.Context, m *domain.Member) error
	SetLoginChallenge(ctx context.Context, memberID string, c *domain.OTPChallenge) error
	ClearLoginChallenge(ctx context.Context, memberID, expectedHash string) error
}

type pendingStore interface {
	Put(ctx context.Context, v *domain.PendingVerification) error
	Get(ctx context.Context, email string) (*domain.PendingVerification, error)
	Delete(ctx context.Context, email string) error
}

type revocationStore interface {
	Insert(ctx context.Context, token string, expiresAt time.Time) error
}

type rateLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

type tokenService interface {
	Issue(subjectID string) (string, error)
	ExtractSubject(token string) (string, bool)
	Validate(token, expectedSubject string) bool
	Verify(token string) (*jwtinfra.Claims, error)
}

type notifier interface {
	SendVerificationCode(ctx context.Context, email, otp string) error
	SendLoginCode(ctx context.Context, email, otp string) error
	SendWelcome(ctx context.Context, email, name string) error
}

type idGenerator interface {
	Generate(ctx context.Context, fullName string, dob time.Time) (string, error)
}

// background runs best-effort work whose failure must not reach the caller.
type background interface {
	Go(ctx context.Context, task string, fn func(ctx context.Context) error)
}

type recorder interface {
	Operation(op, outcome string)
	RateLimited(scope string)
}

type service struct {
	members     memberStore
	pending     pendingStore
	revocations revocationStore
	limiter     rateLimiter
	tokens      tokenService
	notifier    notifier
	ids         idGenerator
	background  background
	metrics     recorder
	now         func() time.Time
	generateOTP func() (string, error)
}

type ServiceDeps struct {
	MemberRepo      memberStore
	PendingRepo     pendingStore
	RevocationStore revocationStore
	Limiter         rateLimiter
	Tokens          tokenService
	Notifier        notifier
	IDGenerator     idGenerator
	Background      background
	Metrics         recorder         // optional
	Now             func() time.Time // optional, defaults to time.Now
	GenerateOTP     func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		members:     deps.MemberRepo,
		pending:     deps.PendingRepo,
		revocations: deps.RevocationStore,
		limiter:     deps.Limiter,
		tokens:      deps.Tokens,
		notifier:    deps.Notifier,
		ids:         deps.IDGenerator,
		background:  deps.Background,
		metrics:     deps.Metrics,
		now:         deps.Now,
		generateOTP: deps.GenerateOTP,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generateOTP == nil {
		s.generateOTP = otp.Generate
	}
	return s
}

func (s *service) StartRegistration(ctx context.Context, r Registration) (err error) {
	defer s.observe(OpStartRegistration, &err)

	email := normalizeEmail(r.Email)
	if _, err := s.members.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	code, hash, err := s.newCode()
	if err != nil {
		return err
	}
	v := &domain.PendingVerification{
		Email:     email,
		FullName:  strings.TrimSpace(r.FullName),
		Contact:   strings.TrimSpace(r.Contact),
		BirthDate: r.BirthDate,
		OTPHash:   hash,
		ExpiresAt: s.now().UTC().Add(RegistrationOTPTTL),
	}
	if err := s.pending.Put(ctx, v); err != nil {
		return err
	}
	return s.notifier.SendVerificationCode(ctx, email, code)
}

func (s *service) CompleteRegistration(ctx context.Context, email, submittedOTP string) (token string, m *domain.Member, err error) {
	defer s.observe(OpCompleteRegistration, &err)

	email = normalizeEmail(email)
	v, err := s.pending.Get(ctx, email)
	if err != nil {
		return "", nil, err
	}
	now := s.now().UTC()
	if now.After(v.ExpiresAt) {
		if derr := s.pending.Delete(ctx, email); derr != nil {
			slog.Warn("failed to delete expired pending verification", "email", email, "err", derr)
		}
		return "", nil, fmt.Errorf("verification code expired: %w", domain.ErrExpired)
	}
	if !otp.Matches(v.OTPHash, submittedOTP) {
		return "", nil, fmt.Errorf("verification code mismatch: %w", domain.ErrInvalidOTP)
	}

	m = &domain.Member{
		FullName:  v.FullName,
		Email:     v.Email,
		Contact:   v.Contact,
		BirthDate: v.BirthDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.createWithFreshID(ctx, m); err != nil {
		return "", nil, err
	}
	if err := s.pending.Delete(ctx, email); err != nil {
		slog.Warn("failed to delete consumed pending verification", "email", email, "err", err)
	}

	name := m.FullName
	s.background.Go(ctx, "welcome_email", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, email, name)
	})

	token, err = s.tokens.Issue(m.MemberID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, m, nil
}

// createWithFreshID generates an id and inserts m, retrying when another
// registration claimed the same id between the read and the insert.
func (s *service) createWithFreshID(ctx context.Context, m *domain.Member) error {
	b := retry.WithMaxRetries(idAttempts-1, retry.NewExponential(idBackoff))
	var taken string
	return retry.Do(ctx, b, func(ctx context.Context) error {
		memberID, err := s.ids.Generate(ctx, m.FullName, m.BirthDate)
		if err != nil {
			return err
		}
		// Ids share a fixed-width prefix, so string order is sequence order.
		if taken != "" && memberID <= taken {
			if memberID, err = memberid.Next(taken); err != nil {
				return err
			}
		}
		m.MemberID = memberID
		m.IDPrefix = memberID[:len(memberID)-2]
		if err := s.members.Create(ctx, m); err != nil {
			if errors.Is(err, domain.ErrMemberIDTaken) {
				taken = memberID
				slog.Info("member id collision, retrying", "member_id", memberID)
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

func (s *service) RequestOTP(ctx context.Context, email string) (err error) {
	defer s.observe(OpRequestOTP, &err)

	email = normalizeEmail(email)
	m, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.admit(ctx, OpRequestOTP, email, RequestOTPLimit); err != nil {
		return err
	}

	code, hash, err := s.newCode()
	if err != nil {
		return err
	}
	challenge := &domain.OTPChallenge{Hash: hash, ExpiresAt: s.now().UTC().Add(LoginOTPTTL)}
	if err := s.members.SetLoginChallenge(ctx, m.MemberID, challenge); err != nil {
		return err
	}
	return s.notifier.SendLoginCode(ctx, email, code)
}

func (s *service) VerifyOTP(ctx context.Context, email, submittedOTP string) (token string, err error) {
	defer s.observe(OpVerifyOTP, &err)

	email = normalizeEmail(email)
	m, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.admit(ctx, OpVerifyOTP, email, VerifyOTPLimit); err != nil {
		return "", err
	}

	c := m.LoginChallenge
	if c.Expired(s.now()) {
		return "", fmt.Errorf("no valid login code: %w", domain.ErrExpired)
	}
	if !otp.Matches(c.Hash, submittedOTP) {
		return "", fmt.Errorf("login code mismatch: %w", domain.ErrInvalidOTP)
	}
	if err := s.members.ClearLoginChallenge(ctx, m.MemberID, c.Hash); err != nil {
		return "", err
	}

	token, err = s.tokens.Issue(m.MemberID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Logout revokes token. Every validation failure collapses into
// domain.ErrUnauthenticated so callers cannot probe which check failed.
func (s *service) Logout(ctx context.Context, token string) (err error) {
	defer s.observe(OpLogout, &err)

	unauthenticated := fmt.Errorf("logout: %w", domain.ErrUnauthenticated)
	if token == "" {
		return unauthenticated
	}
	subject, ok := s.tokens.ExtractSubject(token)
	if !ok {
		return unauthenticated
	}
	m, err := s.members.Get(ctx, subject)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("logout member lookup failed", "member_id", subject, "err", err)
		}
		return unauthenticated
	}
	if !s.tokens.Validate(token, m.MemberID) {
		return unauthenticated
	}
	claims, err := s.tokens.Verify(token)
	if err != nil || claims.ExpiresAt == nil {
		return unauthenticated
	}

	if err := s.admit(ctx, OpLogout, m.MemberID, LogoutLimit); err != nil {
		return err
	}

	expiresAt := claims.ExpiresAt.Time
	if ceiling := s.now().Add(MaxRevocationTTL); expiresAt.After(ceiling) {
		expiresAt = ceiling
	}
	return s.revocations.Insert(ctx, token, expiresAt)
}

// admit applies the sliding-window limit for op keyed by subject. A limiter
// failure rejects the request.
func (s *service) admit(ctx context.Context, op, subject string, limit int) error {
	ok, err := s.limiter.Allow(ctx, op+":"+subject, limit, LimitWindow)
	if err != nil {
		return fmt.Errorf("%s admission: %w", op, err)
	}
	if !ok {
		s.metrics.RateLimited(op)
		return fmt.Errorf("too many %s attempts: %w", op, domain.ErrRateLimited)
	}
	return nil
}

func (s *service) newCode() (code, hash string, err error) {
	code, err = s.generateOTP()
	if err != nil {
		return "", "", err
	}
	hash, err = otp.Hash(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}

func (s *service) observe(op string, err *error) {
	s.metrics.Operation(op, Outcome(*err))
}

// Outcome maps an operation error to a short metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidOTP):
		return "invalid_otp"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	default:
		return "error"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type nopRecorder struct{}

func (nopRecorder) Operation(string, string) {}
func (nopRecorder) RateLimited(string)       {}
