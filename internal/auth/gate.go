package auth

import (
	"context"
	"net/http"
	"strings"

	"hms-notification-service/internal/response"
	"hms-notification-service/internal/xerrors"

	"go.uber.org/zap"
)

type contextKey string

const (
	ContextUserID contextKey = "userID"
	ContextRole   contextKey = "role"
)

func GetUserID(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(ContextUserID).(string)
	return val, ok && val != ""
}

// Gate admits connection upgrades and REST calls carrying a valid bearer token.
type Gate struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

func NewGate(verifier TokenVerifier, logger *zap.Logger) *Gate {
	return &Gate{verifier: verifier, logger: logger}
}

// ExtractToken looks at the Authorization header, then the "token" cookie,
// then the ?token= query parameter.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// VerifyClient is the admission check run before a connection upgrade. It has
// no side effects.
func (g *Gate) VerifyClient(r *http.Request) bool {
	_, err := g.Authenticate(r)
	if err != nil {
		g.logger.Debug("connection rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return false
	}
	return true
}

// Authenticate verifies the request token and returns the user it names.
func (g *Gate) Authenticate(r *http.Request) (string, error) {
	claims, err := g.claims(r)
	if err != nil {
		return "", err
	}
	return claims.UserIdentity(), nil
}

func (g *Gate) claims(r *http.Request) (*Claims, error) {
	token := ExtractToken(r)
	if token == "" {
		return nil, xerrors.ErrMissingToken
	}
	return g.verifier.ParseAndValidate(token)
}

// Middleware rejects unauthenticated requests with 401 and stores the user id
// and role in the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.claims(r)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), ContextUserID, claims.UserIdentity())
		ctx = context.WithValue(ctx, ContextRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
