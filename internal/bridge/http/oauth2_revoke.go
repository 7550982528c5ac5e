package http

import (
	"net/http"

	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/pkg/httpx"
)

// RevokeHandler serves POST /auth/revoke. Per RFC 7009 the endpoint always
// reports success; revoking an unknown token is not an error.
type RevokeHandler struct {
	TokenService *service.TokenService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, ok := mergedParams(w, r)
	if !ok {
		return
	}

	h.TokenService.Revoke(r.Context(), params.Get("token"), params.Get("token_type_hint"))

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
