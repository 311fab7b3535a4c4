// Package codejudge provides a Go client for the codejudge HTTP API.
//
// codejudge runs JavaScript, Python and Java programs on a Judge0 backend and
// reports a normalized {success, output, error} result.
//
// Usage:
//
//	client := codejudge.New("http://localhost:8080", "your-api-key")
//
//	// Run and wait for the verdict
//	res, err := client.Code.Execute(ctx, codejudge.ExecuteRequest{
//	    Language:   "python",
//	    SourceCode: "print(2+3)",
//	})
//
//	// Or queue it and collect the result later
//	queued, err := client.Code.Queue(ctx, req)
//	exec, err := client.Code.GetExecution(ctx, queued.JobID)
package codejudge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is the codejudge API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Service accessors
	Code *CodeService
	Jobs *JobsService
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Synchronous executions can take
// over a minute, so keep any timeout above that.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a codejudge client.
// baseURL should be the root URL (e.g. "http://localhost:8080").
// apiKey is sent as a Bearer token; pass "" when the server runs without API_KEY.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	c.Code = &CodeService{c: c}
	c.Jobs = &JobsService{c: c}
	return c
}

// Health checks that the codejudge server is reachable and healthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	return doRequest[HealthResponse](ctx, c, http.MethodGet, "/health", nil, http.StatusOK)
}

// --- internal helpers ---

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("codejudge: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func doRequest[T any](ctx context.Context, c *Client, method, path string, body any, expectedStatus int) (*T, error) {
	return doRequestWithQuery[T](ctx, c, method, path, nil, body, expectedStatus)
}

func doRequestWithQuery[T any](ctx context.Context, c *Client, method, path string, query map[string]string, body any, expectedStatuses ...int) (*T, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, s := range expectedStatuses {
		if resp.StatusCode == s {
			var out T
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil, fmt.Errorf("codejudge: decode response: %w", err)
			}
			return &out, nil
		}
	}
	return nil, parseError(resp)
}

func parseError(resp *http.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		e.Message = body.Error
	} else {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
