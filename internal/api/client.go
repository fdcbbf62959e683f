package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running dailycraft server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient targets bind, which may be a host:port or a full URL.
func NewClient(bind, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Health queries GET /api/health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
	return resp, err
}

// Generation queries GET /api/generation.
func (c *Client) Generation(ctx context.Context) (GenerationResponse, error) {
	var resp GenerationResponse
	err := c.do(ctx, http.MethodGet, "/api/generation", nil, &resp)
	return resp, err
}

// StartGeneration posts a background generation request.
func (c *Client) StartGeneration(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	var resp GenerationResponse
	err := c.do(ctx, http.MethodPost, "/api/generation", req, &resp)
	return resp, err
}

// RecentEvents queries GET /api/events/recent.
func (c *Client) RecentEvents(ctx context.Context, limit int) (RecentEventsResponse, error) {
	var resp RecentEventsResponse
	path := "/api/events/recent"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// RemoteError is a non-2xx reply from the server.
type RemoteError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &apiErr) != nil {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: apiErr.Error, Kind: apiErr.Kind}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
