package http

import (
	"net/http"
	"time"

	"github.com/mcpbridge/mcpbridge/pkg/httpx"
)

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"name":             "mcpbridge",
		"version":          r.buildVersion,
		"protocol_version": ProtocolVersion,
		"endpoints": map[string]string{
			"authorize": "/auth/authorize",
			"token":     "/auth/token",
			"refresh":   "/auth/refresh",
			"revoke":    "/auth/revoke",
			"stream":    "/mcp/sse",
			"status":    "/auth/status",
		},
	})
}

func (r *Router) handleLivez(w http.ResponseWriter, req *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"uptime":  time.Since(r.startTime).String(),
		"version": r.buildVersion,
	})
}

func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	statusCode := http.StatusOK
	storeCheck := "ok"

	if err := r.store.Ping(req.Context()); err != nil {
		storeCheck = "error: " + err.Error()
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	httpx.WriteJSON(w, statusCode, map[string]any{
		"status":  status,
		"uptime":  time.Since(r.startTime).String(),
		"version": r.buildVersion,
		"checks": map[string]string{
			"store": storeCheck,
		},
	})
}

func (r *Router) handleAuthStatus(w http.ResponseWriter, req *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"auth":             "enabled",
		"protocol_version": ProtocolVersion,
	})
}
