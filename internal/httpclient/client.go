// Package httpclient provides the shared outbound HTTP client used by every
// upstream adapter (places, forecast, speech, generative API).
//
// Requests without a deadline get the configured default timeout. The timeout
// stays in force until the response body is closed, so callers can stream the
// body without racing the deadline.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout is applied to requests whose context carries no deadline.
	DefaultTimeout = 15 * time.Second

	defaultMaxIdleConns          = 100
	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultDialTimeout           = 10 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "KrishiSahay"

	// maxErrorBodyBytes bounds how much of a non-2xx body is kept in StatusError
	maxErrorBodyBytes = 4096
)

// Client wraps http.Client with default timeouts, a User-Agent and observability hooks.
// Safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error, time.Duration)
}

// Config holds configuration for creating an HTTP client.
type Config struct {
	// DefaultTimeout is applied if the request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to all requests that do not set one
	UserAgent string

	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:        DefaultTimeout,
		UserAgent:             defaultUserAgent,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
}

// New creates a client. A nil cfg uses DefaultConfig; zero fields take defaults.
func New(cfg *Config) *Client {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.DefaultTimeout > 0 {
			c.DefaultTimeout = cfg.DefaultTimeout
		}
		if cfg.UserAgent != "" {
			c.UserAgent = cfg.UserAgent
		}
		if cfg.MaxIdleConns > 0 {
			c.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.MaxIdleConnsPerHost > 0 {
			c.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		}
		if cfg.IdleConnTimeout > 0 {
			c.IdleConnTimeout = cfg.IdleConnTimeout
		}
		if cfg.TLSHandshakeTimeout > 0 {
			c.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
		}
		if cfg.ResponseHeaderTimeout > 0 {
			c.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          c.MaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.IdleConnTimeout,
		TLSHandshakeTimeout:   c.TLSHandshakeTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
	}

	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
	}
}

// HTTPClient exposes the underlying *http.Client for SDKs that accept one.
// Requests made through it bypass the default timeout and hooks.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// DefaultTimeout returns the timeout applied to requests without a deadline.
func (c *Client) DefaultTimeout() time.Duration {
	return c.defaultTimeout
}

// cancelOnClose releases the request context once the body has been consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Do executes req under ctx. When ctx has no deadline the default timeout applies
// until the response body is closed. The caller must close the body if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.hookMu.RLock()
	beforeHook, afterHook := c.beforeRequest, c.afterResponse
	c.hookMu.RUnlock()

	if beforeHook != nil {
		beforeHook(req)
	}

	start := time.Now()
	resp, err := c.client.Do(req)

	if afterHook != nil {
		afterHook(req, resp, err, time.Since(start))
	}

	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// StatusError is returned by GetBytes when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// GetBytes performs a GET and returns the full body of a 2xx response.
// Non-2xx responses yield a *StatusError carrying a bounded prefix of the body.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// GetJSON performs a GET and decodes a 2xx JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SetBeforeRequestHook sets a function called before each request.
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function called after each request with its latency.
// resp is nil when err is set.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error, time.Duration)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections in the pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
