package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

// AuthorizeHandler processes OAuth2 authorization requests (authorization code flow).
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
}

// ServeHTTP handles GET /auth/authorize. The outcome is either a 302 with a
// fresh code appended to the caller's redirect_uri, or the consent form for
// redirects the auto-approval policy does not recognise. The form resubmits
// the identical parameters plus auto_approve=true.
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	query := r.URL.Query()

	req := service.AuthorizeRequest{
		ResponseType:        query.Get("response_type"),
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
		Approved:            query.Get("auto_approve") == "true",
	}

	resp, err := h.AuthorizeService.IssueAuthorizationCode(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrConsentRequired) {
			h.renderConsentForm(w, req)
			return
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			ErrInvalidRequest.WriteError(w)
			return
		}
		log.Error("authorize failed", "error", err)
		ErrServerError.WriteError(w)
		return
	}

	redirect, err := url.Parse(resp.RedirectURI)
	if err != nil {
		ErrInvalidRequest.WriteError(w)
		return
	}
	params := redirect.Query()
	params.Set("code", resp.Code)
	if resp.State != "" {
		params.Set("state", resp.State)
	}
	redirect.RawQuery = params.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Authorize Access</title>
  <style>
    body { font-family: -apple-system, sans-serif; max-width: 480px; margin: 80px auto; padding: 0 16px; }
    .client { font-weight: 600; }
    .uri { color: #555; word-break: break-all; }
    button { padding: 8px 24px; font-size: 15px; cursor: pointer; }
  </style>
</head>
<body>
  <h2>Authorize Access</h2>
  <p>The application <span class="client">{{if .ClientID}}{{.ClientID}}{{else}}(unidentified){{end}}</span>
     requests access. After approval you will be redirected to:</p>
  <p class="uri">{{.RedirectURI}}</p>
  <form method="GET" action="/auth/authorize">
    <input type="hidden" name="response_type" value="{{.ResponseType}}">
    <input type="hidden" name="client_id" value="{{.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
    <input type="hidden" name="state" value="{{.State}}">
    <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
    <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
    <input type="hidden" name="auto_approve" value="true">
    <button type="submit">Approve</button>
  </form>
</body>
</html>
`))

func (h *AuthorizeHandler) renderConsentForm(w http.ResponseWriter, req service.AuthorizeRequest) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = consentTemplate.Execute(w, req)
}
