package http

import (
	"net/http"

	"github.com/mcpbridge/mcpbridge/internal/bridge/stream"
	"github.com/mcpbridge/mcpbridge/pkg/httpx"
	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
)

// AuthCookieName is the session cookie checked when no Authorization header
// is present on the streaming endpoint.
const AuthCookieName = "mcp_auth_token"

// SSEHandler serves GET /mcp/sse. Authentication is resolved exactly once at
// accept time: the Authorization header wins over the cookie, and a failed
// verification degrades the session to unauthenticated instead of rejecting
// the transport.
type SSEHandler struct {
	Manager  *stream.Manager
	Verifier jwtx.Verifier
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authenticated, principal, authErr := h.resolveAuth(r)

	sess := h.Manager.Register(authenticated, principal, authErr)
	h.Manager.Serve(w, r, sess)
}

func (h *SSEHandler) resolveAuth(r *http.Request) (bool, stream.Principal, string) {
	token := httpx.BearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(AuthCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return false, stream.Principal{}, ""
	}

	claims, err := h.Verifier.Verify(token)
	if err != nil {
		return false, stream.Principal{}, "token verification failed"
	}

	return true, stream.Principal{
		ClientID:     claims.ClientID,
		TokenType:    claims.TokenType,
		AuthProvider: claims.AuthProvider,
	}, ""
}
