package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = time.Hour

	// TokenTypeAccess marks a bearer access token. Stored in the "type"
	// claim so resource handlers can refuse other token kinds outright.
	TokenTypeAccess = "access"
)

// Claims are the access-token claims. Access tokens are self-contained: the
// signature and expiry alone prove validity, nothing is kept server-side.
type Claims struct {
	jwt.RegisteredClaims

	// ClientID identifies the OAuth client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// TokenType is always "access" for tokens minted by this service.
	TokenType string `json:"type,omitempty"`

	// AuthProvider optionally tags which upstream identity provider
	// authenticated the client (e.g. "oauth", "google").
	AuthProvider string `json:"auth_provider,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for an access token.
func NewAccessClaims(clientID, authProvider, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		ClientID:     clientID,
		TokenType:    TokenTypeAccess,
		AuthProvider: authProvider,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
