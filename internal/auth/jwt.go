package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"hms-notification-service/internal/config"
	"hms-notification-service/internal/xerrors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims accepts the user id under "uid" (identity service tokens) or
// "userId", falling back to the registered subject.
type Claims struct {
	UserID    string `json:"uid,omitempty"`
	AltUserID string `json:"userId,omitempty"`
	UserType  string `json:"type,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserIdentity() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.AltUserID != "":
		return c.AltUserID
	default:
		return c.Subject
	}
}

// TokenVerifier is the external token-verification collaborator.
type TokenVerifier interface {
	ParseAndValidate(token string) (*Claims, error)
}

type Verifier struct {
	key      any
	methods  []string
	issuer   string
	audience string
}

// NewHMACVerifier verifies HS256/384/512 tokens signed with secret.
func NewHMACVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{
		key:      secret,
		methods:  []string{"HS256", "HS384", "HS512"},
		issuer:   issuer,
		audience: audience,
	}
}

// NewRSAVerifier verifies RS256/384/512 tokens.
func NewRSAVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		key:      pub,
		methods:  []string{"RS256", "RS384", "RS512"},
		issuer:   issuer,
		audience: audience,
	}
}

// NewVerifierFromConfig prefers the RSA public key when a path is configured.
func NewVerifierFromConfig(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.PubPath != "" {
		pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
		if err != nil {
			return nil, err
		}
		return NewRSAVerifier(pub, cfg.Issuer, cfg.Audience), nil
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt: neither JWT_PUBLIC_KEY_PATH nor JWT_SECRET is set")
	}
	return NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer, cfg.Audience), nil
}

func (v *Verifier) ParseAndValidate(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, xerrors.ErrMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := new(Claims)
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, xerrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, xerrors.ErrInvalidToken
	}
	if claims.UserIdentity() == "" {
		return nil, xerrors.ErrNoUserClaim
	}
	return claims, nil
}
