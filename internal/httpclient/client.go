// Package httpclient is the upstream HTTP client shared by the source
// adapters and the price API client.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"launchpad-index/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultUserAgent   = "launchpad-index/1.0"

	maxBodySize = 8 << 20
)

// jsonAPI decodes untyped numbers as json.Number so wei-scale integers keep
// every digit until the normalizer converts them.
var jsonAPI = sonic.Config{UseNumber: true}.Froze()

// ErrRateLimited is wrapped by the final error when every attempt got 429.
var ErrRateLimited = errors.New("rate limited (429)")

// StatusError is returned for a non-2xx response that is not retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// Client performs JSON and text requests against one upstream base URL
// with retries and exponential backoff.
type Client struct {
	baseURL     string
	host        string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	headers     http.Header
	logger      zerolog.Logger
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		headers:     http.Header{},
		logger:      zerolog.Nop(),
	}
	c.headers.Set("User-Agent", DefaultUserAgent)
	if u, err := url.Parse(baseURL); err == nil {
		c.host = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON performs GET path?query and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, c.url(path, query), nil, "application/json")
	if err != nil {
		return err
	}
	return decode(body, out)
}

// PostJSON marshals in, POSTs it to path and decodes the JSON body into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := jsonAPI.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, c.url(path, nil), payload, "application/json")
	if err != nil {
		return err
	}
	return decode(body, out)
}

// GetText performs GET path?query and returns the raw body.
func (c *Client) GetText(ctx context.Context, path string, query url.Values) (string, error) {
	body, err := c.do(ctx, http.MethodGet, c.url(path, query), nil, "text/html,application/json;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := jsonAPI.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) url(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u = c.baseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// do performs a request with retries and exponential backoff.
// Transport errors, 429 and 5xx are retried; other statuses are not.
func (c *Client) do(ctx context.Context, method, target string, payload []byte, accept string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, v := range c.headers {
			req.Header[k] = v
		}
		req.Header.Set("Accept", accept)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		observability.RecordUpstreamLatency(c.host, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			c.retrying(target, attempt, "transport", lastErr)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			c.retrying(target, attempt, "read", lastErr)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > delay {
				delay = min(wait, c.maxDelay)
			}
			c.retrying(target, attempt, "rate_limited", lastErr)
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			c.retrying(target, attempt, "server_error", lastErr)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) retrying(target string, attempt int, reason string, err error) {
	if attempt >= c.maxRetries {
		return
	}
	observability.RecordUpstreamRetry(c.host, reason)
	c.logger.Debug().
		Str("url", target).
		Int("attempt", attempt+1).
		Str("reason", reason).
		Err(err).
		Msg("retrying upstream request")
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// DecodeJSON decodes data with the same settings as response bodies.
func DecodeJSON(data []byte, out any) error {
	return decode(data, out)
}
