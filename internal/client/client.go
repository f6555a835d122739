// Package client provides an HTTP client for a running ecoscan server's
// session and admin endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// DefaultURL is where `ecoscan serve` listens with the default config.
const DefaultURL = "http://localhost:8080"

// Client talks to one ecoscan server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client with a 5-second timeout.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *Client) Health(ctx context.Context) (bool, string) {
	body, status, err := c.do(ctx, http.MethodGet, "/admin/health", nil)
	if err != nil {
		return false, err.Error()
	}
	if status == http.StatusOK {
		return true, strings.TrimSpace(string(body))
	}
	return false, fmt.Sprintf("status %d: %s", status, body)
}

// State calls GET /v1/state.
func (c *Client) State(ctx context.Context) (*offers.AppState, error) {
	body, err := c.expectOK(ctx, http.MethodGet, "/v1/state", nil, "state")
	if err != nil {
		return nil, err
	}
	var st offers.AppState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &st, nil
}

// AddPoints calls POST /v1/points and returns the resulting state.
func (c *Client) AddPoints(ctx context.Context, points int) (*offers.AppState, error) {
	return c.mutate(ctx, "/v1/points", map[string]int{"points": points}, "add points")
}

// AddCarbon calls POST /v1/carbon and returns the resulting state.
func (c *Client) AddCarbon(ctx context.Context, score float64) (*offers.AppState, error) {
	return c.mutate(ctx, "/v1/carbon", map[string]float64{"score": score}, "add carbon")
}

func (c *Client) mutate(ctx context.Context, path string, req any, what string) (*offers.AppState, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	body, err := c.expectOK(ctx, http.MethodPost, path, payload, what)
	if err != nil {
		return nil, err
	}
	var st offers.AppState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &st, nil
}

// Export returns the raw GET /admin/state document.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	return c.expectOK(ctx, http.MethodGet, "/admin/state", nil, "export")
}

// Reset calls POST /admin/reset.
func (c *Client) Reset(ctx context.Context) (string, error) {
	body, err := c.expectOK(ctx, http.MethodPost, "/admin/reset", nil, "reset")
	return strings.TrimSpace(string(body)), err
}

// Seed POSTs the contents of a JSON file to POST /admin/state.
func (c *Client) Seed(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	body, err := c.expectOK(ctx, http.MethodPost, "/admin/state", data, "seed")
	return strings.TrimSpace(string(body)), err
}

func (c *Client) expectOK(ctx context.Context, method, path string, payload []byte, what string) ([]byte, error) {
	body, status, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", what, status, bytes.TrimSpace(body))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var r io.Reader
	if payload != nil {
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading %s response: %w", path, err)
	}
	return body, resp.StatusCode, nil
}
