// Package auth verifies caller identity for the assistant API.
//
// User IDs are derived from a verified bearer token, never from request body
// content, so one user cannot read or write another user's conversation log.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Error variables for token verification failures.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrEmptySubject = errors.New("token has no subject")
)

// Verifier extracts a verified user ID from an Authorization header value.
type Verifier interface {
	VerifyAuthorization(header string) (string, error)
}

// Opts holds configuration options for the HMAC verifier.
type Opts struct {
	Secret string // shared HS256 signing secret
}

// Option defines a configuration option for the HMAC verifier.
type Option func(*Opts)

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) Option {
	return func(o *Opts) {
		o.Secret = secret
	}
}

// HMACVerifier validates HS256-signed JWTs and returns the subject claim.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier with the configured signing secret.
func NewHMACVerifier(opts ...Option) (*HMACVerifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Secret == "" {
		slog.Error("auth.NewHMACVerifier: signing secret not set")
		return nil, fmt.Errorf("auth signing secret not set")
	}
	return &HMACVerifier{secret: []byte(cfg.Secret)}, nil
}

// VerifyAuthorization parses a "Bearer <token>" header value and returns the
// verified subject (user ID).
func (v *HMACVerifier) VerifyAuthorization(header string) (string, error) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if header == "" || tokenString == "" || tokenString == header {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		slog.Warn("auth.VerifyAuthorization: token parse failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		slog.Warn("auth.VerifyAuthorization: token has no subject", "error", err)
		return "", ErrEmptySubject
	}
	slog.Debug("auth.VerifyAuthorization: token verified", "uid", sub)
	return sub, nil
}
