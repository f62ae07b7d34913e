// Package rest implements the authenticated request primitive of the Shrimpy REST API
// and the one call the streaming side needs from it: fetching a websocket token.
package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/alejoacosta74/shrimpy-stream/internal/auth"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://dev-api.shrimpy.io/v1/"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20
)

// Client sends signed requests to the REST API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	signer  *auth.Signer
	limiter *rate.Limiter
	logger  *logger.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		c.baseURL = u
		return nil
	}
}

// WithSigner authenticates every request. Without a signer only public endpoints work.
func WithSigner(s *auth.Signer) Option {
	return func(c *Client) error {
		c.signer = s
		return nil
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		c.http = h
		return nil
	}
}

// WithTimeout sets the per-request timeout. A client passed to WithHTTPClient is
// copied first, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
		return nil
	}
}

// WithRateLimit throttles requests to perSecond with the given burst. A non-positive
// rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// NewClient builds a client for DefaultBaseURL unless overridden.
func NewClient(opts ...Option) (*Client, error) {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.WithField("component", "rest_client"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Call sends method to endpoint (relative to the base URL) with the query params and the
// JSON encoding of body, and decodes the JSON response into out. body and out may be
// nil. Non-2xx responses return *APIError.
func (c *Client) Call(ctx context.Context, method, endpoint string, params url.Values, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	rel, err := url.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	u := c.baseURL.ResolveReference(rel)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	method = strings.ToUpper(method)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.signer != nil {
		for k, v := range c.signer.Sign(method, u.RequestURI(), payload) {
			req.Header[k] = v
		}
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.WithFields(logger.Fields{"method": method, "path": u.Path})
	log.Trace("Sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, data)
		log.WithField("status", resp.StatusCode).Debugf("Request failed: %s", apiErr.Message)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var errEmptyToken = errors.New("ws/token returned an empty token")

// WebsocketToken fetches a single-use token for the streaming endpoint.
func (c *Client) WebsocketToken(ctx context.Context) (string, error) {
	var resp shrimpy.TokenResponse
	if err := c.Call(ctx, http.MethodGet, "ws/token", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errEmptyToken
	}
	return resp.Token, nil
}
