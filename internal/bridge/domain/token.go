package domain

import "time"

// DefaultRefreshTokenTTL is how long a refresh token stays redeemable.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// TokenPair represents what the token endpoint returns: the short-lived
// access token (JWT) and the opaque refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds until expiry
}

// RefreshToken models a stored refresh token record. The Token field holds
// the opaque token value itself, which is also the lookup key. Rotation
// deletes the record and creates a fresh one.
type RefreshToken struct {
	Token     string
	ClientID  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
