package http

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/mcpbridge/mcpbridge/internal/bridge/metrics"
	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

// CallbackHandler serves GET /auth/callback: the browser lands here after an
// approval redirect, the code is redeemed immediately, and the resulting
// access token is handed to the opening page.
type CallbackHandler struct {
	TokenService *service.TokenService
	Metrics      *metrics.Metrics

	// DevMode includes error details in server_error responses.
	DevMode bool
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	code := r.URL.Query().Get("code")
	if code == "" {
		ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.RedeemCallbackCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGrant) {
			ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("callback code redemption failed", "error", err)
		if h.DevMode {
			(&OAuth2Error{
				StatusCode:  http.StatusInternalServerError,
				Code:        "server_error",
				Description: err.Error(),
			}).WriteError(w)
			return
		}
		ErrServerError.WriteError(w)
		return
	}

	if h.Metrics != nil {
		h.Metrics.TokensIssued.WithLabelValues("callback").Inc()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = callbackTemplate.Execute(w, map[string]any{
		"AccessToken":  pair.AccessToken,
		"RefreshToken": pair.RefreshToken,
		"ExpiresIn":    pair.ExpiresIn,
		"State":        r.URL.Query().Get("state"),
	})
}

// The success page posts the token to the window that opened the popup and
// stashes it in localStorage for same-tab flows, then closes itself.
var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Authentication Successful</title>
  <style>
    body { font-family: -apple-system, sans-serif; text-align: center; margin-top: 120px; }
  </style>
</head>
<body>
  <h2>Authentication successful</h2>
  <p>You can close this window.</p>
  <script>
    (function () {
      var payload = {
        type: "mcp_auth_success",
        accessToken: {{.AccessToken}},
        refreshToken: {{.RefreshToken}},
        expiresIn: {{.ExpiresIn}},
        state: {{.State}}
      };
      try {
        localStorage.setItem("mcp_auth_token", payload.accessToken);
      } catch (e) {}
      if (window.opener) {
        window.opener.postMessage(payload, "*");
        window.setTimeout(function () { window.close(); }, 500);
      }
    })();
  </script>
</body>
</html>
`))
