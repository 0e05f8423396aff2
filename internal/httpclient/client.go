// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httpclient provides the shared HTTP client every backend call goes through.
//
// The client carries a set of default headers applied to each outgoing request
// (the session layer keeps Authorization there) and lets interested parties
// subscribe to unauthorized responses instead of hiding that coupling in a
// global interceptor.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every request made through a Client.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response body is kept in StatusError.
const maxErrorBody = 4 << 10

// ErrDecodeResponse marks a 2xx response whose body could not be decoded.
var ErrDecodeResponse = errors.New("decode response")

// Client is a base-URL-bound HTTP client with process-wide default headers.
// It is safe for concurrent use.
type Client struct {
	// baseURL is prefixed to every request path (e.g., "http://localhost:8000")
	baseURL string
	// http is the underlying client with configured timeout
	http *http.Client
	// userAgent identifies the CLI build to the backend
	userAgent string

	mu        sync.RWMutex
	headers   http.Header
	nextID    int
	observers []observer
}

type observer struct {
	id int
	fn func(*http.Response)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "qms-cli",
		headers:   http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL every request path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// SetDefaultHeader sets a header sent with every subsequent request.
func (c *Client) SetDefaultHeader(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Set(name, value)
}

// DeleteDefaultHeader stops sending the named header by default.
func (c *Client) DeleteDefaultHeader(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Del(name)
}

// DefaultHeader returns the current default value of the named header.
func (c *Client) DefaultHeader(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vals, ok := c.headers[http.CanonicalHeaderKey(name)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// OnUnauthorized registers fn to be called for every 401 response received by
// this client, whichever caller issued the request. fn runs synchronously in the
// requesting goroutine before Do returns and must not consume the response body.
// The returned function removes the subscription.
func (c *Client) OnUnauthorized(fn func(*http.Response)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, observer{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, o := range c.observers {
				if o.id == id {
					c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// NewRequest builds a request for path relative to the base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

// Do sends req with the default headers applied. Headers already present on
// req win over defaults. A 401 response notifies OnUnauthorized subscribers and
// is then returned to the caller unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.notifyUnauthorized(resp)
	}
	return resp, nil
}

// DoJSON sends in (when non-nil) as a JSON body and decodes a 2xx response
// into out (when non-nil). Non-2xx responses yield a *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}
	return nil
}

// applyHeaders sets the standard and default headers on req.
func (c *Client) applyHeaders(req *http.Request) {
	c.mu.RLock()
	for name, vals := range c.headers {
		if req.Header.Get(name) == "" && len(vals) > 0 {
			req.Header.Set(name, vals[0])
		}
	}
	c.mu.RUnlock()

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
}

func (c *Client) notifyUnauthorized(resp *http.Response) {
	c.mu.RLock()
	fns := make([]func(*http.Response), 0, len(c.observers))
	for _, o := range c.observers {
		fns = append(fns, o.fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(resp)
	}
}
