package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is the single failure mode Verify reports. Malformed tokens, bad
// signatures and expired tokens all collapse into it so callers cannot be
// used as an oracle for which check failed.
var ErrInvalid = errors.New("jwtx: invalid token")

// Signer mints signed access tokens.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a token string and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256 signs and verifies tokens with a shared secret (HMAC-SHA256).
// The zero value is unusable; construct with NewHS256.
type HS256 struct {
	secret []byte
	issuer string

	// now is the clock used during verification. Overridable in tests to
	// probe expiry boundaries.
	now func() time.Time
}

// NewHS256 builds an HS256 signer/verifier from the configured secret.
func NewHS256(secret, issuer string) *HS256 {
	return &HS256{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// WithTimeFunc returns a copy whose verification clock is fn. Test hook.
func (h *HS256) WithTimeFunc(fn func() time.Time) *HS256 {
	c := *h
	c.now = fn
	return &c
}

// Sign serializes and signs the claims.
func (h *HS256) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

// Verify parses and validates a token. Every failure is reported as
// ErrInvalid regardless of the underlying cause.
func (h *HS256) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return Claims{}, ErrInvalid
	}

	if h.issuer != "" && claims.Issuer != h.issuer {
		return Claims{}, ErrInvalid
	}

	return claims, nil
}

var (
	_ Signer   = (*HS256)(nil)
	_ Verifier = (*HS256)(nil)
)
