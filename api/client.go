package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/cache"
	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/resilience"
)

// Endpoint paths relative to the API base URL.
const (
	PathCheckLogin   = "/cli/check-login"
	PathHealth       = "/health"
	PathGenerateSite = "/ai"
	PathGeneratePost = "/ai/generatePost"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// Client talks to the remote service.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: every call honors cancellation and deadlines.
//   - Errors: non-2xx responses are *StatusError; 4xx other than 408/429
//     are marked permanent and are not retried.
type Client struct {
	baseURL   string
	plain     *http.Client
	authed    *http.Client
	tokens    auth.TokenSource
	cache     *cache.CacheMiddleware
	executor  *resilience.Executor
	mw        *observe.Middleware
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Default: a client with no
// overall timeout; per-attempt timeouts come from the executor.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.plain = hc
		}
	}
}

// WithTokenSource authenticates generation calls with bearer tokens.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithCache memoizes generation calls.
func WithCache(m *cache.CacheMiddleware) Option {
	return func(c *Client) {
		c.cache = m
	}
}

// WithExecutor runs generation calls through retry, rate limiting and timeouts.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = e
	}
}

// WithMiddleware instruments every call.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Client) {
		c.mw = mw
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		plain:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.authed = c.plain
	if c.tokens != nil {
		c.authed = &http.Client{
			Transport:     &auth.BearerTransport{Source: c.tokens, Base: c.plain.Transport},
			CheckRedirect: c.plain.CheckRedirect,
			Jar:           c.plain.Jar,
			Timeout:       c.plain.Timeout,
		}
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// call runs one instrumented request through the executor.
func (c *Client) call(ctx context.Context, op observe.OpMeta, hc *http.Client, method, path string, in, out any) error {
	return c.mw.Run(ctx, op, func(ctx context.Context) error {
		return c.executor.Execute(ctx, func(ctx context.Context) error {
			return c.doJSON(ctx, hc, method, path, in, out)
		})
	})
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("api: encode %s request: %w", path, err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("api: build %s request: %w", path, err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if authFailure(err) {
			return resilience.Permanent(err)
		}
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("api: read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(method, path, resp, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resilience.Permanent(fmt.Errorf("%w: %s: %v", ErrDecode, path, err))
	}
	return nil
}
