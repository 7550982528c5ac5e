package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// PKCEMethodS256 is the only code_challenge_method this server accepts at
// redemption time (RFC 7636 section 4.2).
const PKCEMethodS256 = "S256"

// ComputeS256Challenge derives the PKCE code challenge from a verifier using
// the S256 transformation: base64url-no-pad(SHA-256(verifier)).
func ComputeS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyCodeVerifier checks a presented code_verifier against the challenge
// stored with an authorization code.
//
// An empty stored challenge means the code was issued without PKCE and any
// verifier (including none) is accepted. When a challenge is stored, only the
// S256 method is honoured; a code issued under any other declared method can
// never be redeemed. A missing verifier is a mismatch.
func VerifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	if !strings.EqualFold(strings.TrimSpace(method), PKCEMethodS256) && strings.TrimSpace(method) != "" {
		return false
	}

	expected := ComputeS256Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
}
