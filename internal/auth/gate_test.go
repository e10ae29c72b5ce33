package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hms-notification-service/internal/config"
	"hms-notification-service/internal/xerrors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func validClaims(uid string) Claims {
	return Claims{
		UserID: uid,
		Role:   "nurse",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	v := NewHMACVerifier(secret, "", "")
	claims, err := v.ParseAndValidate(sign(t, validClaims("u1")))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserIdentity())
}

func TestVerifierUserIdentityFallbacks(t *testing.T) {
	v := NewHMACVerifier(secret, "", "")

	c := validClaims("")
	c.AltUserID = "alt"
	got, err := v.ParseAndValidate(sign(t, c))
	require.NoError(t, err)
	assert.Equal(t, "alt", got.UserIdentity())

	c = validClaims("")
	c.Subject = "sub"
	got, err = v.ParseAndValidate(sign(t, c))
	require.NoError(t, err)
	assert.Equal(t, "sub", got.UserIdentity())
}

func TestVerifierRejections(t *testing.T) {
	v := NewHMACVerifier(secret, "auth-service", "notifications")

	expired := validClaims("u1")
	expired.Issuer = "auth-service"
	expired.Audience = jwt.ClaimStrings{"notifications"}
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims("u1")
	wrongIssuer.Issuer = "someone-else"
	wrongIssuer.Audience = jwt.ClaimStrings{"notifications"}

	noUser := validClaims("")
	noUser.Issuer = "auth-service"
	noUser.Audience = jwt.ClaimStrings{"notifications"}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("u1")).SignedString([]byte("other"))
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", xerrors.ErrMissingToken},
		{"garbage", "not-a-jwt", xerrors.ErrInvalidToken},
		{"expired", sign(t, expired), xerrors.ErrExpiredToken},
		{"wrong issuer", sign(t, wrongIssuer), xerrors.ErrInvalidToken},
		{"wrong key", otherKey, xerrors.ErrInvalidToken},
		{"no user claim", sign(t, noUser), xerrors.ErrNoUserClaim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ParseAndValidate(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifierRejectsUnexpectedAlgorithm(t *testing.T) {
	v := NewHMACVerifier(secret, "", "")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("u1")).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.ParseAndValidate(tok)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestRSAVerifierFromConfig(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewVerifierFromConfig(config.JWTConfig{PubPath: path, Secret: "ignored"})
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("u7")).SignedString(key)
	require.NoError(t, err)
	claims, err := v.ParseAndValidate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u7", claims.UserIdentity())

	// HMAC token against an RSA verifier
	_, err = v.ParseAndValidate(sign(t, validClaims("u7")))
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestVerifierFromConfigRequiresKeyMaterial(t *testing.T) {
	_, err := NewVerifierFromConfig(config.JWTConfig{})
	assert.Error(t, err)

	_, err = NewVerifierFromConfig(config.JWTConfig{PubPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}

func TestLoadRSAPublicKeyRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string][]byte{
		"plain.pem": []byte("nope"),
		"cert.pem":  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}),
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, body, 0o600))
		_, err := LoadRSAPublicKeyFromPEM(path)
		assert.Error(t, err, name)
	}
}

func TestExtractTokenSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	assert.Equal(t, "query", ExtractToken(r))

	r.AddCookie(&http.Cookie{Name: "token", Value: "cookie"})
	assert.Equal(t, "cookie", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", ExtractToken(r))
}

func TestGateVerifyClient(t *testing.T) {
	g := NewGate(NewHMACVerifier(secret, "", ""), zap.NewNop())

	ok := httptest.NewRequest(http.MethodGet, "/ws?token="+sign(t, validClaims("u1")), nil)
	assert.True(t, g.VerifyClient(ok))
	uid, err := g.Authenticate(ok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	assert.False(t, g.VerifyClient(httptest.NewRequest(http.MethodGet, "/ws", nil)))
	assert.False(t, g.VerifyClient(httptest.NewRequest(http.MethodGet, "/ws?token=bad", nil)))
}

func TestGateMiddleware(t *testing.T) {
	g := NewGate(NewHMACVerifier(secret, "", ""), zap.NewNop())
	var seen string
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, validClaims("u3")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u3", seen)
}
