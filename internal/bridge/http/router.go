package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/controlplane"
	"github.com/mcpbridge/mcpbridge/internal/bridge/metrics"
	"github.com/mcpbridge/mcpbridge/internal/bridge/service"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store"
	"github.com/mcpbridge/mcpbridge/internal/bridge/stream"
	"github.com/mcpbridge/mcpbridge/pkg/httpx"
	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

// ProtocolVersion is the MCP protocol revision this bridge speaks.
const ProtocolVersion = "2025-03-26"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	devMode      bool

	store            store.Store
	TokenService     *service.TokenService
	AuthorizeService *service.AuthorizeService
	StreamManager    *stream.Manager
	ControlPlane     *controlplane.Client
	Metrics          *metrics.Metrics
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	devMode bool,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		devMode:      devMode,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORS(httpx.DefaultCORSConfig()),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerStream()
	r.registerRenderProxy()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{AuthorizeService: r.AuthorizeService}

	// GET /auth/ keeps older clients working; they discover the authorize
	// endpoint from the root and expect a redirect with the query intact.
	r.Mux.Handle("GET /auth/{$}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		target := "/auth/authorize"
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}
		http.Redirect(w, req, target, http.StatusFound)
	}))

	r.Mux.Handle("GET /auth/authorize",
		httpx.Chain(authorizeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	callbackHandler := &CallbackHandler{
		TokenService: r.TokenService,
		Metrics:      r.Metrics,
		DevMode:      r.devMode,
	}
	r.Mux.Handle("GET /auth/callback",
		httpx.Chain(callbackHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	tokenHandler := &TokenHandler{TokenService: r.TokenService, Metrics: r.Metrics}
	r.Mux.Handle("POST /auth/token",
		httpx.Chain(http.HandlerFunc(tokenHandler.HandleToken),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(tokenHandler.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /auth/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /auth/status", http.HandlerFunc(r.handleAuthStatus))
}

func (r *Router) registerStream() {
	sseHandler := &SSEHandler{
		Manager:  r.StreamManager,
		Verifier: r.verifier,
	}
	r.Mux.Handle("GET /mcp/sse", sseHandler)

	dispatchHandler := &DispatchHandler{
		Manager:      r.StreamManager,
		ControlPlane: r.ControlPlane,
	}
	r.Mux.Handle("POST /mcp/sse/request",
		httpx.Chain(dispatchHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRenderProxy() {
	h := &RenderProxyHandler{ControlPlane: r.ControlPlane}

	secured := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByClient(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /api/render/services", secured(http.HandlerFunc(h.HandleListServices)))
	r.Mux.Handle("GET /api/render/services/{id}", secured(http.HandlerFunc(h.HandleGetService)))
	r.Mux.Handle("POST /api/render/services/{id}/deploy", secured(http.HandlerFunc(h.HandleDeploy)))
	r.Mux.Handle("GET /api/render/services/{id}/deploys/{deployId}", secured(http.HandlerFunc(h.HandleGetDeploy)))
	r.Mux.Handle("PUT /api/render/services/{id}/env-vars", secured(http.HandlerFunc(h.HandleUpdateEnvVars)))
	r.Mux.Handle("POST /api/render/services/{id}/restart", secured(http.HandlerFunc(h.HandleRestart)))
	r.Mux.Handle("POST /api/render/services/{id}/suspend", secured(http.HandlerFunc(h.HandleSuspend)))
	r.Mux.Handle("POST /api/render/services/{id}/resume", secured(http.HandlerFunc(h.HandleResume)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /{$}", http.HandlerFunc(r.handleIndex))
	r.Mux.Handle("GET /livez", http.HandlerFunc(r.handleLivez))
	r.Mux.Handle("GET /readyz", http.HandlerFunc(r.handleReadyz))
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
