// Package datafusion deploys compute profiles and pipeline apps to a Cloud
// Data Fusion instance over its REST API. It shares the httpx executor, so
// transport failures get the same bounded retry and synthetic-status
// treatment as GitHub traffic.
package datafusion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/repopulse/repopulse/internal/httpx"
)

// Environment variables checked, in order, for the bearer token.
var tokenEnvVars = []string{"GCP_AUTH_TOKEN", "GOOGLE_ACCESS_TOKEN", "OIDC_TOKEN"}

// TokenFromEnv returns the first bearer token found in the environment.
func TokenFromEnv() (string, error) {
	for _, name := range tokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no GCP token found; set one of %v", tokenEnvVars)
}

// Client talks to one Data Fusion instance API endpoint.
type Client struct {
	exec     *httpx.Executor
	endpoint string
	token    string
	logger   *zap.Logger
}

// NewClient creates a client for the given instance API endpoint, e.g.
// "https://<instance>-dot-<region>.datafusion.googleusercontent.com/api".
func NewClient(exec *httpx.Executor, endpoint, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{exec: exec, endpoint: endpoint, token: token, logger: logger}
}

// ResolveEndpoint asks the Data Fusion management API for the instance's
// API endpoint.
func ResolveEndpoint(ctx context.Context, exec *httpx.Executor, project, location, instance, token string) (string, error) {
	u := fmt.Sprintf("https://datafusion.googleapis.com/v1/projects/%s/locations/%s/instances/%s",
		project, location, instance)
	res := exec.Do(ctx, http.MethodGet, u, bearerHeader(token), nil)
	if !res.OK() {
		return "", fmt.Errorf("failed to get Data Fusion instance details: status %d: %s",
			res.StatusCode, errDetail(res))
	}

	var payload struct {
		APIEndpoint string `json:"apiEndpoint"`
	}
	if err := res.Decode(&payload); err != nil {
		return "", err
	}
	if payload.APIEndpoint == "" {
		return "", fmt.Errorf("instance response carried no apiEndpoint")
	}
	return payload.APIEndpoint, nil
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Content-Type", "application/json")
	return h
}

func errDetail(res httpx.Result) string {
	if res.ErrText != "" {
		return res.ErrText
	}
	return string(res.Body)
}

// GetProfile fetches a compute profile, or nil when it does not exist.
func (c *Client) GetProfile(ctx context.Context, namespace, name string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v3/namespaces/%s/profiles/%s", c.endpoint, namespace, name)
	res := c.exec.Do(ctx, http.MethodGet, u, bearerHeader(c.token), nil)
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !res.OK() {
		return nil, fmt.Errorf("failed to get profile %s/%s: status %d: %s",
			namespace, name, res.StatusCode, errDetail(res))
	}
	return json.RawMessage(res.Body), nil
}

// PutProfile creates or updates a compute profile.
func (c *Client) PutProfile(ctx context.Context, namespace, name string, spec json.RawMessage) error {
	u := fmt.Sprintf("%s/v3/namespaces/%s/profiles/%s", c.endpoint, namespace, name)
	res := c.exec.Do(ctx, http.MethodPut, u, bearerHeader(c.token), spec)
	if !res.OK() {
		return fmt.Errorf("failed to put profile %s/%s: status %d: %s",
			namespace, name, res.StatusCode, errDetail(res))
	}
	c.logger.Info("profile deployed", zap.String("namespace", namespace), zap.String("profile", name))
	return nil
}

// GetApp fetches a pipeline app, or nil when it does not exist.
func (c *Client) GetApp(ctx context.Context, namespace, name string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v3/namespaces/%s/apps/%s", c.endpoint, namespace, name)
	res := c.exec.Do(ctx, http.MethodGet, u, bearerHeader(c.token), nil)
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !res.OK() {
		return nil, fmt.Errorf("failed to get app %s/%s: status %d: %s",
			namespace, name, res.StatusCode, errDetail(res))
	}
	return json.RawMessage(res.Body), nil
}

// DeployApp creates or updates a pipeline app from its exported config.
func (c *Client) DeployApp(ctx context.Context, namespace, name string, pipeline json.RawMessage) error {
	u := fmt.Sprintf("%s/v3/namespaces/%s/apps/%s", c.endpoint, namespace, name)
	res := c.exec.Do(ctx, http.MethodPut, u, bearerHeader(c.token), pipeline)
	if !res.OK() {
		return fmt.Errorf("failed to deploy app %s/%s: status %d: %s",
			namespace, name, res.StatusCode, errDetail(res))
	}
	c.logger.Info("pipeline deployed", zap.String("namespace", namespace), zap.String("app", name))
	return nil
}
