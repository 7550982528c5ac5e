package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcpbridge/mcpbridge/internal/bridge/controlplane"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

// RenderProxyHandler is the REST face of the control-plane client: a thin
// pass-through under /api/render for callers that prefer plain HTTP over the
// streaming dispatch channel.
type RenderProxyHandler struct {
	ControlPlane *controlplane.Client
}

func (h *RenderProxyHandler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.ListServices(r.Context())
	})
}

func (h *RenderProxyHandler) HandleGetService(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.GetService(r.Context(), r.PathValue("id"))
	})
}

func (h *RenderProxyHandler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClearCache bool `json:"clearCache"`
	}
	// An empty body means a plain deploy.
	_ = json.NewDecoder(r.Body).Decode(&body)

	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.DeployService(r.Context(), r.PathValue("id"), controlplane.DeployOptions{
			ClearCache: body.ClearCache,
		})
	})
}

func (h *RenderProxyHandler) HandleGetDeploy(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.GetDeploy(r.Context(), r.PathValue("id"), r.PathValue("deployId"))
	})
}

func (h *RenderProxyHandler) HandleUpdateEnvVars(w http.ResponseWriter, r *http.Request) {
	var vars []controlplane.EnvVar
	if err := json.NewDecoder(r.Body).Decode(&vars); err != nil {
		ErrInvalidRequest.WriteError(w)
		return
	}

	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.UpdateEnvVars(r.Context(), r.PathValue("id"), vars)
	})
}

func (h *RenderProxyHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.RestartService(r.Context(), r.PathValue("id"))
	})
}

func (h *RenderProxyHandler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.SuspendService(r.Context(), r.PathValue("id"))
	})
}

func (h *RenderProxyHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func() (json.RawMessage, error) {
		return h.ControlPlane.ResumeService(r.Context(), r.PathValue("id"))
	})
}

func (h *RenderProxyHandler) relay(w http.ResponseWriter, r *http.Request, call func() (json.RawMessage, error)) {
	result, err := call()
	if err != nil {
		var upstream *controlplane.UpstreamError
		if errors.As(err, &upstream) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(upstream.StatusCode)
			_, _ = w.Write(upstream.Body)
			return
		}
		slogx.FromContext(r.Context()).Error("control-plane relay failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}
