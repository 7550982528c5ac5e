package http_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/controlplane"
	bridgehttp "github.com/mcpbridge/mcpbridge/internal/bridge/http"
	"github.com/mcpbridge/mcpbridge/internal/bridge/metrics"
	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store/drivers/memory"
	"github.com/mcpbridge/mcpbridge/internal/bridge/stream"
	"github.com/mcpbridge/mcpbridge/pkg/cryptox"
	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-test-secret-test-1234"
	testIssuer   = "mcpbridge"
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

var forwardedSeq int

// newTestRouter wires a full router against the in-memory store and an
// optional stub control plane.
func newTestRouter(t *testing.T, upstream http.Handler) *bridgehttp.Router {
	t.Helper()

	st := memory.NewStore()
	signer := jwtx.NewHS256(testSecret, testIssuer)
	policy := service.ApprovalPolicy{
		ClientID:       "configured-client",
		TrustedDomains: []string{"claude.ai", "localhost"},
	}

	tokenSvc := &service.TokenService{
		Signer:       signer,
		Store:        st,
		Policy:       policy,
		Issuer:       testIssuer,
		AuthProvider: "local",
		AccessTTL:    time.Hour,
		RefreshTTL:   30 * 24 * time.Hour,
	}
	authorizeSvc := &service.AuthorizeService{Store: st, Policy: policy}

	m := metrics.New()
	manager := stream.NewManager("http://localhost:10000/auth/authorize", m)

	var cp *controlplane.Client
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		cp = controlplane.NewClient(srv.URL, "rnd_test")
	}

	r := bridgehttp.NewRouter(signer, "test", st, slogx.Discard(), false)
	r.TokenService = tokenSvc
	r.AuthorizeService = authorizeSvc
	r.StreamManager = manager
	r.ControlPlane = cp
	r.Metrics = m
	r.ApplyRoutes()
	return r
}

// doRequest executes a request with a unique forwarded IP so rate limit
// buckets never carry over between test cases.
func doRequest(router *bridgehttp.Router, req *http.Request) *httptest.ResponseRecorder {
	forwardedSeq++
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.1.%d.%d", forwardedSeq/250, forwardedSeq%250))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postForm(router *bridgehttp.Router, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(router, req)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthorizeTrustedRedirect(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/authorize?response_type=code&client_id=configured-client&redirect_uri=https%3A%2F%2Fclaude.ai%2Foauth%2Fcallback&state=abc", nil)
	rec := doRequest(router, req)

	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "claude.ai", loc.Host)
	require.Equal(t, "/oauth/callback", loc.Path)
	require.NotEmpty(t, loc.Query().Get("code"))
	require.Equal(t, "abc", loc.Query().Get("state"))
}

func TestAuthorizeConsentFormRoundtrip(t *testing.T) {
	router := newTestRouter(t, nil)

	// Unknown redirect gets the consent form, not a redirect.
	req := httptest.NewRequest(http.MethodGet,
		"/auth/authorize?response_type=code&client_id=someone&redirect_uri=https%3A%2F%2Funknown.example%2Fcb", nil)
	rec := doRequest(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), `name="auto_approve" value="true"`)

	// The resubmission with the approval flag succeeds.
	req = httptest.NewRequest(http.MethodGet,
		"/auth/authorize?response_type=code&client_id=someone&redirect_uri=https%3A%2F%2Funknown.example%2Fcb&auto_approve=true", nil)
	rec = doRequest(router, req)
	require.Equal(t, http.StatusFound, rec.Code)
}

func TestAuthorizeMissingRedirectURI(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/authorize?response_type=code", nil)
	rec := doRequest(router, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeJSON(t, rec)["error"])
}

func TestAuthRootRedirectPreservesQuery(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/?response_type=code&client_id=x", nil)
	rec := doRequest(router, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/auth/authorize?response_type=code&client_id=x", rec.Header().Get("Location"))
}

func TestTokenExchangeFullFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	challenge := cryptox.ComputeS256Challenge(testVerifier)
	authURL := "/auth/authorize?" + url.Values{
		"response_type":         {"code"},
		"client_id":             {"configured-client"},
		"redirect_uri":          {"https://claude.ai/oauth/callback"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}.Encode()

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, authURL, nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, _ := url.Parse(rec.Header().Get("Location"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	rec = postForm(router, "/auth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"configured-client"},
		"code":          {code},
		"redirect_uri":  {"https://claude.ai/oauth/callback"},
		"code_verifier": {testVerifier},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.Equal(t, "Bearer", body["token_type"])
	require.EqualValues(t, 3600, body["expires_in"])

	// Rotate via the sibling refresh endpoint.
	rec = postForm(router, "/auth/refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {"configured-client"},
		"refresh_token": {body["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeJSON(t, rec)
	require.NotEqual(t, body["refresh_token"], rotated["refresh_token"])

	// The old refresh token is dead.
	rec = postForm(router, "/auth/refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {"configured-client"},
		"refresh_token": {body["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rec)["error"])
}

func TestTokenAcceptsQueryParams(t *testing.T) {
	router := newTestRouter(t, nil)

	// Mint a code first.
	rec := doRequest(router, httptest.NewRequest(http.MethodGet,
		"/auth/authorize?response_type=code&redirect_uri=http%3A%2F%2Flocalhost%3A3000%2Fcb", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, _ := url.Parse(rec.Header().Get("Location"))
	code := loc.Query().Get("code")

	// Exchange with every parameter in the query string and an empty body.
	target := "/auth/token?" + url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {"claude-web-client"},
		"code":         {code},
		"redirect_uri": {"http://localhost:3000/cb"},
	}.Encode()
	rec = doRequest(router, httptest.NewRequest(http.MethodPost, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenUnknownCode(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postForm(router, "/auth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {"configured-client"},
		"code":         {"deadbeef"},
		"redirect_uri": {"https://claude.ai/oauth/callback"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rec)["error"])
}

func TestTokenUnsupportedGrantType(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postForm(router, "/auth/token", url.Values{
		"grant_type": {"password"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unsupported_grant_type", decodeJSON(t, rec)["error"])
}

func TestRevokeUnknownTokenIsSuccess(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postForm(router, "/auth/revoke", url.Values{
		"token":           {"unknown-token"},
		"token_type_hint": {"refresh_token"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeJSON(t, rec)["success"])
}

func TestCallback(t *testing.T) {
	router := newTestRouter(t, nil)

	t.Run("missing code", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_request", decodeJSON(t, rec)["error"])
	})

	t.Run("unknown code", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/auth/callback?code=deadbeef", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_grant", decodeJSON(t, rec)["error"])
	})

	t.Run("valid code renders the success page", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest(http.MethodGet,
			"/auth/authorize?response_type=code&redirect_uri=http%3A%2F%2Flocalhost%3A3000%2Fcb", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		loc, _ := url.Parse(rec.Header().Get("Location"))
		code := loc.Query().Get("code")

		rec = doRequest(router, httptest.NewRequest(http.MethodGet, "/auth/callback?code="+code, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		require.Contains(t, rec.Body.String(), "mcp_auth_success")
	})
}

func TestAuthStatus(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/auth/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	require.Equal(t, "enabled", body["auth"])
	require.Equal(t, "2025-03-26", body["protocol_version"])
}

func TestSystemEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "mcpbridge", decodeJSON(t, rec)["name"])

	rec = doRequest(router, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON(t, rec)["status"])

	rec = doRequest(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRenderProxy(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/services" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[{"service":{"id":"srv-1"}}]`))
		case r.URL.Path == "/services/srv-1/restart":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	})
	router := newTestRouter(t, upstream)

	signer := jwtx.NewHS256(testSecret, testIssuer)
	token, err := signer.Sign(jwtx.NewAccessClaims("client-a", "local", testIssuer, time.Hour, time.Now()))
	require.NoError(t, err)

	t.Run("requires a bearer token", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/render/services", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", decodeJSON(t, rec)["error"])
	})

	t.Run("passes results through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/render/services", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := doRequest(router, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `[{"service":{"id":"srv-1"}}]`, rec.Body.String())
	})

	t.Run("relays upstream errors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/render/services/missing", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := doRequest(router, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "not found")
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/render/services", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		rec := doRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestDispatch(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/services/srv-1/suspend" {
			_, _ = w.Write([]byte(`{"status":"suspended"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})
	router := newTestRouter(t, upstream)

	// A registered session observes the dispatch narration.
	sess := router.StreamManager.Register(true, stream.Principal{ClientID: "observer"}, "")
	defer router.StreamManager.Deregister(sess.ID)

	body := strings.NewReader(`{"action":"suspend","serviceId":"srv-1","requestId":"r-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp/sse/request", body)
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON(t, rec)
	require.Equal(t, "r-1", resp["requestId"])

	received := <-sess.Events()
	require.Equal(t, "request_received", received["type"])
	completed := <-sess.Events()
	require.Equal(t, "request_completed", completed["type"])
	require.Equal(t, "r-1", completed["requestId"])

	t.Run("upstream failure relays status and narrates the error", func(t *testing.T) {
		body := strings.NewReader(`{"action":"restart","serviceId":"srv-2","requestId":"r-2"}`)
		req := httptest.NewRequest(http.MethodPost, "/mcp/sse/request", body)
		req.Header.Set("Content-Type", "application/json")
		rec := doRequest(router, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Contains(t, rec.Body.String(), "boom")

		received := <-sess.Events()
		require.Equal(t, "request_received", received["type"])
		errEvent := <-sess.Events()
		require.Equal(t, "request_error", errEvent["type"])
	})

	t.Run("unknown action is invalid_request", func(t *testing.T) {
		body := strings.NewReader(`{"action":"format_disk"}`)
		req := httptest.NewRequest(http.MethodPost, "/mcp/sse/request", body)
		req.Header.Set("Content-Type", "application/json")
		rec := doRequest(router, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
