package http_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// firstStreamEvent connects to /mcp/sse with the given request mutations and
// returns the first event on the stream.
func firstStreamEvent(t *testing.T, router http.Handler, mutate func(*http.Request)) map[string]any {
	t.Helper()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	mutate(req)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
	}()

	select {
	case raw := <-lines:
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &event))
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("no event received from stream")
		return nil
	}
}

func TestSSEAuthResolution(t *testing.T) {
	router := newTestRouter(t, nil)

	signer := jwtx.NewHS256(testSecret, testIssuer)
	token, err := signer.Sign(jwtx.NewAccessClaims("cookie-client", "local", testIssuer, time.Hour, time.Now()))
	require.NoError(t, err)

	t.Run("cookie authenticates when no header is present", func(t *testing.T) {
		event := firstStreamEvent(t, router, func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "mcp_auth_token", Value: token})
		})
		require.Equal(t, "connection", event["type"])
		require.Equal(t, true, event["authenticated"])
	})

	t.Run("a bad header beats a good cookie", func(t *testing.T) {
		event := firstStreamEvent(t, router, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer garbage")
			req.AddCookie(&http.Cookie{Name: "mcp_auth_token", Value: token})
		})
		require.Equal(t, "auth_required", event["type"])
		require.Equal(t, "token verification failed", event["error"])
	})

	t.Run("no credentials opens an unauthenticated session", func(t *testing.T) {
		event := firstStreamEvent(t, router, func(*http.Request) {})
		require.Equal(t, "auth_required", event["type"])
		require.NotEmpty(t, event["authUrl"])
	})
}
