package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/member-auth/internal/config"
	"github.com/member-auth/internal/pkg/id"
)

// Claims holds the JWT payload fields. The member id travels as the
// registered `sub` claim; nothing else about the member is embedded.
type Claims struct {
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 session tokens. Keys are loaded once at
// startup and the provider is safe for concurrent use.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	now        func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(cfg *config.Config, opts ...Option) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKeys(privKey, pubKey, cfg.JWTExpiry, opts...)
}

// NewProviderFromKeys builds a provider from already-parsed keys.
func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, expiry time.Duration, opts ...Option) (*Provider, error) {
	if priv == nil || pub == nil {
		return nil, errors.New("jwt: key pair required")
	}
	if expiry <= 0 {
		return nil, errors.New("jwt: expiry must be positive")
	}
	p := &Provider{privateKey: priv, publicKey: pub, expiry: expiry, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Lifetime is the fixed validity window of every issued token.
func (p *Provider) Lifetime() time.Duration { return p.expiry }

// Issue signs a token for subjectID expiring Lifetime() from now.
func (p *Provider) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("jwt: empty subject")
	}
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        id.NewAt(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// Verify checks signature and expiry and returns the claims.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	return p.parse(tokenStr, jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
}

// Validate reports whether tokenStr carries a good signature, is unexpired
// and, when expectedSubject is non-empty, names that subject. It never panics
// on malformed input.
func (p *Provider) Validate(tokenStr, expectedSubject string) bool {
	claims, err := p.Verify(tokenStr)
	if err != nil {
		return false
	}
	if claims.Subject == "" {
		return false
	}
	return expectedSubject == "" || claims.Subject == expectedSubject
}

// ExtractSubject returns the subject of a correctly signed token without
// checking its expiry. Malformed or forged tokens yield ok=false.
func (p *Provider) ExtractSubject(tokenStr string) (string, bool) {
	claims, err := p.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func (p *Provider) parse(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	if tokenStr == "" {
		return nil, errors.New("empty token")
	}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
