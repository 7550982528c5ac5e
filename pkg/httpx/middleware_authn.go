package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
)

// AuthnMiddleware verifies the Authorization bearer token on every request
// and attaches the resulting claims to the request context. Requests without
// a valid token get a 401 with an OAuth-style error body. Verification
// failures are not distinguished in the response.
func AuthnMiddleware(verifier jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeAuthnError(w)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeAuthnError(w)
				return
			}

			ctx := context.WithValue(r.Context(), CtxKeyClaims, claims)
			ctx = context.WithValue(ctx, CtxKeyClientID, claims.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
// Returns "" when the header is missing or uses a different scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAuthnError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": "Missing or invalid access token",
	})
}
