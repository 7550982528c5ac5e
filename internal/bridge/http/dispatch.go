package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/controlplane"
	"github.com/mcpbridge/mcpbridge/internal/bridge/stream"
	"github.com/mcpbridge/mcpbridge/pkg/httpx"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

// dispatchTimeout bounds a single control-plane call so a slow upstream
// cannot stall the dispatch response. Session keepalives run in their own
// goroutines and are unaffected either way.
const dispatchTimeout = 25 * time.Second

// DispatchRequest is the body of POST /mcp/sse/request.
type DispatchRequest struct {
	Action     string             `json:"action"`
	ServiceID  string             `json:"serviceId"`
	Parameters DispatchParameters `json:"parameters"`
	RequestID  string             `json:"requestId"`
}

// DispatchParameters carries the action-specific knobs.
type DispatchParameters struct {
	ClearCache bool                  `json:"clearCache"`
	DeployID   string                `json:"deployId"`
	EnvVars    []controlplane.EnvVar `json:"envVars"`
}

// DispatchHandler relays client requests to the control plane and narrates
// progress to every streaming session.
type DispatchHandler struct {
	Manager      *stream.Manager
	ControlPlane *controlplane.Client
}

func (h *DispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Action == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	h.Manager.Broadcast(stream.NewEvent(stream.EventRequestReceived, map[string]any{
		"action":    req.Action,
		"serviceId": req.ServiceID,
		"requestId": req.RequestID,
	}))

	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()

	result, err := h.invoke(ctx, req)
	if err != nil {
		h.Manager.Broadcast(stream.NewEvent(stream.EventRequestError, map[string]any{
			"action":    req.Action,
			"requestId": req.RequestID,
			"error":     err.Error(),
		}))

		var upstream *controlplane.UpstreamError
		if errors.As(err, &upstream) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(upstream.StatusCode)
			_, _ = w.Write(upstream.Body)
			return
		}
		if errors.Is(err, errUnknownAction) {
			ErrInvalidRequest.WriteError(w)
			return
		}
		log.Error("dispatch failed", "action", req.Action, "error", err)
		ErrServerError.WriteError(w)
		return
	}

	h.Manager.Broadcast(stream.NewEvent(stream.EventRequestCompleted, map[string]any{
		"action":    req.Action,
		"requestId": req.RequestID,
	}))

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"requestId": req.RequestID,
		"result":    result,
	})
}

var errUnknownAction = errors.New("unknown action")

func (h *DispatchHandler) invoke(ctx context.Context, req DispatchRequest) (json.RawMessage, error) {
	switch req.Action {
	case "list_services":
		return h.ControlPlane.ListServices(ctx)
	case "get_service":
		return h.ControlPlane.GetService(ctx, req.ServiceID)
	case "deploy":
		return h.ControlPlane.DeployService(ctx, req.ServiceID, controlplane.DeployOptions{
			ClearCache: req.Parameters.ClearCache,
		})
	case "get_deploy":
		return h.ControlPlane.GetDeploy(ctx, req.ServiceID, req.Parameters.DeployID)
	case "update_env":
		return h.ControlPlane.UpdateEnvVars(ctx, req.ServiceID, req.Parameters.EnvVars)
	case "restart":
		return h.ControlPlane.RestartService(ctx, req.ServiceID)
	case "suspend":
		return h.ControlPlane.SuspendService(ctx, req.ServiceID)
	case "resume":
		return h.ControlPlane.ResumeService(ctx, req.ServiceID)
	default:
		return nil, errUnknownAction
	}
}
