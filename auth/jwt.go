// Package auth verifies end-user bearer tokens for the HTTP API.
//
// Tokens are HS256 JWTs signed with a shared secret, the kind issued by
// hosted auth providers such as Supabase.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication errors.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrNoSecret           = errors.New("auth: signing secret is required")
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HS256 signing secret.
	Secret string

	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// Identity is the verified caller.
type Identity struct {
	Subject string
	Email   string
	Role    string
}

// JWTAuthenticator validates bearer tokens.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates an authenticator for config.
func NewJWTAuthenticator(config JWTConfig) (*JWTAuthenticator, error) {
	if strings.TrimSpace(config.Secret) == "" {
		return nil, ErrNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}, nil
}

// Authenticate verifies the Authorization header of r.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrMissingCredentials
	}

	claims := &userClaims{}
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return []byte(a.config.Secret), nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	default:
		return nil, ErrInvalidCredentials
	}

	if claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Subject: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

type userClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity in ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
