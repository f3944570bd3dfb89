// ABOUTME: HTTP client for the coven backend REST API
// ABOUTME: Handles base URL resolution, bearer auth, error decoding, 401 token clearing and request accounting

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies and updates the bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Save(ctx context.Context, token, email string) error
	Clear(ctx context.Context) error
}

// BaseURLResolver resolves the backend base URL at runtime.
type BaseURLResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Executor runs a round trip, e.g. through a circuit breaker.
type Executor interface {
	Do(fn func() (*http.Response, error)) (*http.Response, error)
}

// Recorder observes completed requests. code is 0 when no response was received.
type Recorder interface {
	ObserveRequest(method string, code int)
}

// Options configures a Client. Only one of BaseURL or Resolver is needed.
type Options struct {
	BaseURL    string
	Resolver   BaseURLResolver
	HTTPClient *http.Client
	Tokens     TokenSource
	Breaker    Executor
	Recorder   Recorder
	Logger     *slog.Logger

	// Timeout bounds each non-streaming request. Zero means no per-request timeout.
	Timeout time.Duration
	// MaxChars is the chat message limit checked before sending.
	MaxChars int
}

// Client calls the backend REST API.
type Client struct {
	baseURL  string
	resolver BaseURLResolver
	http     *http.Client
	tokens   TokenSource
	breaker  Executor
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
	maxChars int
}

// New creates a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		resolver: opts.Resolver,
		http:     httpClient,
		tokens:   opts.Tokens,
		breaker:  opts.Breaker,
		recorder: opts.Recorder,
		logger:   logger.With("component", "client"),
		timeout:  opts.Timeout,
		maxChars: opts.MaxChars,
	}
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL(ctx context.Context) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	if c.resolver == nil {
		return "", fmt.Errorf("no base url configured")
	}
	base, err := c.resolver.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving base url: %w", err)
	}
	return strings.TrimRight(base, "/"), nil
}

// Token returns the current bearer token, or an empty string when logged out.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.doRaw(ctx, method, path, query, body, contentType, out)
}

// doRaw sends a request with an arbitrary body and decodes a JSON response into out.
func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}

	resp, err := c.execute(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// newRequest builds a request against the resolved base URL with auth headers.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	base, err := c.BaseURL(ctx)
	if err != nil {
		return nil, err
	}

	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// execute performs the round trip. Non-2xx responses are returned as *APIError with the body consumed.
// A 401 clears the stored token before returning.
func (c *Client) execute(req *http.Request) (*http.Response, error) {
	send := func() (*http.Response, error) { return c.http.Do(req) }

	var (
		resp *http.Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Do(send)
	} else {
		resp, err = send()
	}

	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	if c.recorder != nil {
		c.recorder.ObserveRequest(req.Method, code)
	}

	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		c.logger.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := parseAPIError(resp)
		c.logger.Debug("request rejected", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "detail", apiErr.Detail)

		if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
			if err := c.tokens.Clear(req.Context()); err != nil {
				c.logger.Warn("failed to clear token after 401", "error", err)
			}
		}
		return nil, apiErr
	}

	return resp, nil
}

// pathEscape escapes an id for use as a single path segment
func pathEscape(id string) string {
	return url.PathEscape(id)
}
