package http

import (
	"net/http"
	"net/url"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
	"github.com/mcpbridge/mcpbridge/internal/bridge/metrics"
	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/pkg/httpx"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

// TokenHandler serves the token and refresh endpoints. Parameters are
// accepted from the query string and the form body uniformly; browser-based
// callers split them unpredictably between the two.
type TokenHandler struct {
	TokenService *service.TokenService
	Metrics      *metrics.Metrics
}

// HandleToken serves POST /auth/token.
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	params, ok := mergedParams(w, r)
	if !ok {
		return
	}

	grantType := params.Get("grant_type")
	switch grantType {
	case "authorization_code":
		pair, err := h.TokenService.ExchangeAuthorizationCode(
			r.Context(),
			params.Get("client_id"),
			params.Get("code"),
			params.Get("redirect_uri"),
			params.Get("code_verifier"),
		)
		h.respond(w, r, "authorization_code", pair, err)

	case "refresh_token":
		// Tolerated on the main endpoint as well as /auth/refresh.
		pair, err := h.TokenService.ExchangeRefreshToken(
			r.Context(),
			params.Get("client_id"),
			params.Get("refresh_token"),
		)
		h.respond(w, r, "refresh_token", pair, err)

	default:
		h.fail(w, "unknown", ErrUnsupportedGrantType)
	}
}

// HandleRefresh serves POST /auth/refresh, the sibling refresh endpoint.
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	params, ok := mergedParams(w, r)
	if !ok {
		return
	}

	if grant := params.Get("grant_type"); grant != "" && grant != "refresh_token" {
		h.fail(w, "unknown", ErrUnsupportedGrantType)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(
		r.Context(),
		params.Get("client_id"),
		params.Get("refresh_token"),
	)
	h.respond(w, r, "refresh_token", pair, err)
}

func (h *TokenHandler) respond(w http.ResponseWriter, r *http.Request, grant string, pair *domain.TokenPair, err error) {
	if err != nil {
		oauthErr := mapServiceError(err)
		if oauthErr == ErrServerError {
			slogx.FromContext(r.Context()).Error("token grant failed", "grant", grant, "error", err)
		}
		h.fail(w, grant, oauthErr)
		return
	}

	if h.Metrics != nil {
		h.Metrics.TokensIssued.WithLabelValues(grant).Inc()
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *TokenHandler) fail(w http.ResponseWriter, grant string, oauthErr *OAuth2Error) {
	if h.Metrics != nil {
		h.Metrics.GrantFailures.WithLabelValues(oauthErr.Code).Inc()
	}
	oauthErr.WriteError(w)
}

// mergedParams folds the query string and the form body into one value set.
// Body values win only by position (they are appended after query values and
// url.Values.Get returns the first), which in practice means the query wins;
// either source alone is sufficient.
func mergedParams(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	if err := r.ParseForm(); err != nil {
		ErrInvalidRequest.WriteError(w)
		return nil, false
	}
	// r.Form already merges the URL query and the POST body.
	return r.Form, true
}
