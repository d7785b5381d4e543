package apiclient

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

	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
	specPath       = "/openapi.json"
	formsPath      = "/forms"
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource func(ctx context.Context) (string, error)

// Client calls the remote API rooted at a base URL.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
	tokens TokenSource

	group singleflight.Group
	cache *SpecCache
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTokenSource overrides how bearer tokens are obtained. The default reads
// the token stored with ContextWithToken.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		if source != nil {
			c.tokens = source
		}
	}
}

// WithSpecCache shares a spec cache between clients.
func WithSpecCache(cache *SpecCache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// New constructs a Client. The base URL is validated on first use so callers
// see the failure as a user facing FetchError.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimSpace(baseURL),
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
		tokens: tokenFromContext,
		cache:  NewSpecCache(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base
}

// Cache exposes the spec cache backing FetchSpec.
func (c *Client) Cache() *SpecCache {
	return c.cache
}

type tokenKey struct{}

// ContextWithToken stores a bearer token for requests issued with ctx.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFromContext(ctx context.Context) (string, error) {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token, nil
}

// endpoint joins the base URL and path.
func (c *Client) endpoint(path string) (string, error) {
	parsed, err := url.Parse(c.base)
	if err != nil {
		return "", invalidURLError(c.base, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", invalidURLError(c.base, nil)
	}
	return strings.TrimRight(c.base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method, target string, payload any) (response, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("apiclient: encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return response{}, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens(ctx)
	if err != nil {
		return response{}, fmt.Errorf("apiclient: token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "url", target, "error", err)
		return response{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("apiclient: read body: %w", err)
	}
	c.logger.Debug("api request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)
	return response{status: resp.StatusCode, body: body}, nil
}
