package controlplane_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcpbridge/mcpbridge/internal/bridge/controlplane"
	"github.com/stretchr/testify/require"
)

func TestClientPassesThroughResults(t *testing.T) {
	var gotAuth, gotPath, gotMethod, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"service":{"id":"srv-1"}}]`))
	}))
	defer srv.Close()

	c := controlplane.NewClient(srv.URL, "rnd_token")

	raw, err := c.ListServices(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer rnd_token", gotAuth)
	require.Equal(t, http.MethodGet, gotMethod)
	require.Equal(t, "/services", gotPath)
	require.JSONEq(t, `[{"service":{"id":"srv-1"}}]`, string(raw))

	_, err = c.DeployService(context.Background(), "srv-1", controlplane.DeployOptions{ClearCache: true})
	require.NoError(t, err)
	require.Equal(t, "/services/srv-1/deploys", gotPath)
	require.JSONEq(t, `{"clearCache":"clear"}`, gotBody)

	_, err = c.UpdateEnvVars(context.Background(), "srv-1", []controlplane.EnvVar{{Key: "FOO", Value: "bar"}})
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, gotMethod)
	require.JSONEq(t, `[{"key":"FOO","value":"bar"}]`, gotBody)
}

func TestClientSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream exploded"}`))
	}))
	defer srv.Close()

	c := controlplane.NewClient(srv.URL, "rnd_token")

	_, err := c.GetService(context.Background(), "srv-1")
	var upstream *controlplane.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	require.Contains(t, string(upstream.Body), "upstream exploded")
}

func TestClientEmptyBodyBecomesEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := controlplane.NewClient(srv.URL, "rnd_token")

	raw, err := c.RestartService(context.Background(), "srv-1")
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(raw, &obj))
	require.Empty(t, obj)
}
