// Package controlplane is a thin client for the hosting control-plane API.
// The bridge never interprets the upstream payloads; results pass through as
// raw JSON and failures surface as opaque upstream errors.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the control-plane API. All operations are simple
// request/response calls keyed by a bearer credential.
type Client struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a control-plane client with a sane default timeout.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UpstreamError reports a non-2xx control-plane response. The body passes
// through untouched so callers can relay it.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("control plane returned %d: %s", e.StatusCode, e.Body)
}

// EnvVar is one environment variable entry in the upstream's wire format.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DeployOptions are the knobs for triggering a deploy.
type DeployOptions struct {
	ClearCache bool
}

// ListServices returns all services visible to the API token.
func (c *Client) ListServices(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/services?limit=50", nil)
}

// GetService returns a single service by id.
func (c *Client) GetService(ctx context.Context, serviceID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(serviceID), nil)
}

// DeployService triggers a deploy for the service.
func (c *Client) DeployService(ctx context.Context, serviceID string, opts DeployOptions) (json.RawMessage, error) {
	clearCache := "do_not_clear"
	if opts.ClearCache {
		clearCache = "clear"
	}
	body := map[string]string{"clearCache": clearCache}
	return c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(serviceID)+"/deploys", body)
}

// GetDeploy returns the status of a specific deploy.
func (c *Client) GetDeploy(ctx context.Context, serviceID, deployID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet,
		"/services/"+url.PathEscape(serviceID)+"/deploys/"+url.PathEscape(deployID), nil)
}

// UpdateEnvVars replaces the service's environment variables.
func (c *Client) UpdateEnvVars(ctx context.Context, serviceID string, vars []EnvVar) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, "/services/"+url.PathEscape(serviceID)+"/env-vars", vars)
}

// RestartService restarts the service.
func (c *Client) RestartService(ctx context.Context, serviceID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(serviceID)+"/restart", nil)
}

// SuspendService suspends the service.
func (c *Client) SuspendService(ctx context.Context, serviceID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(serviceID)+"/suspend", nil)
}

// ResumeService resumes a suspended service.
func (c *Client) ResumeService(ctx context.Context, serviceID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(serviceID)+"/resume", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: respBody}
	}

	if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return json.RawMessage(`{}`), nil
	}

	return json.RawMessage(respBody), nil
}
