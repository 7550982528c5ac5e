package httpx

import (
	"context"

	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyClientID ctxKey = "client_id"
	CtxKeyClaims   ctxKey = "claims"
)

// ClaimsFromContext returns the verified access-token claims attached by
// AuthnMiddleware, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// ClientIDFromContext returns the authenticated client id, or "".
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyClientID).(string); ok {
		return v
	}
	return ""
}
