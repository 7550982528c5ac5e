package domain

import "time"

// DefaultAuthorizationCodeTTL is how long an issued code stays redeemable.
const DefaultAuthorizationCodeTTL = 10 * time.Minute

// AuthorizationCode represents an OAuth 2.0 authorization code issuance.
// The Code field holds the opaque code value itself, which is also the
// lookup key. Codes are single use: redemption removes the record.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
