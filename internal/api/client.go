package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running curator daemon over its HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a client for the daemon at bind (host:port or full URL).
func NewClient(bind, token string, opts ...ClientOption) *Client {
	baseURL := strings.TrimRight(bind, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status fetches the daemon status summary.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.get(ctx, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Media fetches the detail view of one canonical record.
func (c *Client) Media(ctx context.Context, internalID string) (*MediaView, error) {
	var out MediaResponse
	if err := c.get(ctx, "/api/media/"+url.PathEscape(internalID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Media, nil
}

// Refresh submits a refresh request; when req.Wait is set the call blocks
// until the job finishes.
func (c *Client) Refresh(ctx context.Context, req RefreshRequest) (*JobView, error) {
	var out RefreshResponse
	if err := c.post(ctx, "/api/refresh", req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Jobs lists sync jobs, optionally filtered by state.
func (c *Client) Jobs(ctx context.Context, states ...string) ([]JobView, error) {
	params := url.Values{}
	for _, state := range states {
		params.Add("state", state)
	}
	var out JobListResponse
	if err := c.get(ctx, "/api/jobs", params, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// CancelPending drops queued jobs for a target.
func (c *Client) CancelPending(ctx context.Context, req CancelRequest) (int, error) {
	var out CancelResponse
	if err := c.post(ctx, "/api/jobs/cancel", req, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Search runs a provider free-text search.
func (c *Client) Search(ctx context.Context, source, query string, page int) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("source", source)
	params.Set("q", query)
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	var out SearchResponse
	if err := c.get(ctx, "/api/search", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
