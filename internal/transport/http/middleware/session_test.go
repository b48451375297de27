package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/member-auth/internal/config"
	"github.com/member-auth/internal/domain"
	jwtinfra "github.com/member-auth/internal/infrastructure/jwt"
	redisinfra "github.com/member-auth/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "jwt_token"

// newTestProvider generates a fresh RSA key pair, writes them to temp files,
// and returns a *jwtinfra.Provider.
func newTestProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

type memberMap map[string]*domain.Member

func (m memberMap) Get(_ context.Context, id string) (*domain.Member, error) {
	if v, ok := m[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

type failingRevocations struct{}

func (failingRevocations) Exists(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

type gateFixture struct {
	tokens  *jwtinfra.Provider
	revoked *redisinfra.RevocationStore
	members memberMap
}

func newGateFixture(t *testing.T) *gateFixture {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &gateFixture{
		tokens:  newTestProvider(t),
		revoked: redisinfra.NewRevocationStore(rdb),
		members: memberMap{"A0101": {MemberID: "A0101", Email: "alice@example.com", FullName: "Alice"}},
	}
}

// serve runs the gate and reports the identity the downstream handler saw.
func (f *gateFixture) serve(t *testing.T, revocations revocationChecker, req *http.Request) *domain.Identity {
	t.Helper()
	var got *domain.Identity
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	SessionGate(cookieName, f.tokens, revocations, f.members)(capture).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, "gate never rejects")
	return got
}

func withCookie(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	return req
}

func TestSessionGate_NoCookie(t *testing.T) {
	f := newGateFixture(t)
	assert.Nil(t, f.serve(t, f.revoked, httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestSessionGate_ValidToken_AttachesIdentity(t *testing.T) {
	f := newGateFixture(t)
	token, err := f.tokens.Issue("A0101")
	require.NoError(t, err)

	id := f.serve(t, f.revoked, withCookie(token))
	require.NotNil(t, id)
	assert.Equal(t, "A0101", id.MemberID)
	assert.Equal(t, "alice@example.com", id.Email)
}

func TestSessionGate_RevokedTokenIsAbsent(t *testing.T) {
	f := newGateFixture(t)
	token, err := f.tokens.Issue("A0101")
	require.NoError(t, err)
	require.NoError(t, f.revoked.Insert(context.Background(), token, time.Now().Add(time.Hour)))

	assert.True(t, f.tokens.Validate(token, "A0101"), "still structurally valid")
	assert.Nil(t, f.serve(t, f.revoked, withCookie(token)))
}

func TestSessionGate_BadInputsProceedUnauthenticated(t *testing.T) {
	f := newGateFixture(t)
	unknown, err := f.tokens.Issue("Z9901")
	require.NoError(t, err)
	foreign, err := newTestProvider(t).Issue("A0101")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not-a-token",
		"unknown member": unknown,
		"foreign key":    foreign,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, f.serve(t, f.revoked, withCookie(token)))
		})
	}
}

func TestSessionGate_RevocationStoreFailure(t *testing.T) {
	f := newGateFixture(t)
	token, err := f.tokens.Issue("A0101")
	require.NoError(t, err)
	assert.Nil(t, f.serve(t, failingRevocations{}, withCookie(token)))
}

func TestSessionGate_BearerHeaderIgnored(t *testing.T) {
	f := newGateFixture(t)
	token, err := f.tokens.Issue("A0101")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Nil(t, f.serve(t, f.revoked, req))
}

func TestRequireIdentity(t *testing.T) {
	h := RequireIdentity(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthenticated","error_code":"unauthenticated"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), IdentityKey, &domain.Identity{MemberID: "A0101"}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, SessionToken(req, cookieName))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", SessionToken(req, cookieName))

	req.AddCookie(&http.Cookie{Name: cookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", SessionToken(req, cookieName))
}
