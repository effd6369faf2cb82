// Package transport provides the rate-limited, retrying HTTP client shared by
// every fetcher in the pipeline. It applies split connect/read timeouts,
// exponential backoff on transient failures, optional upstream proxying, and
// user-agent rotation.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// maxErrBody bounds how much of a failed response body is kept on the error.
const maxErrBody = 1024

// FetchError describes a failed HTTP exchange. Transient errors were retried
// until the attempt budget ran out; non-transient ones surfaced immediately.
type FetchError struct {
	URL       string
	Status    int
	Body      string
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transport: %s: status %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config holds the client policy knobs.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryAttempts  int
	RetryBase      time.Duration
	RetryMax       time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	ProxyURL       string // empty disables proxying
	UserAgents     []string
}

// Client is a retrying HTTP client. All outbound requests of the process go
// through one Client so the rate ceiling is global.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	attempts   int
	retryBase  time.Duration
	retryMax   time.Duration
	userAgents []string
	logger     *slog.Logger
}

// New creates a Client from cfg. The connect timeout applies to dialing, the
// read timeout to waiting for response headers.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		MaxIdleConnsPerHost:   8,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("transport: parse proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = float64(rate.Inf)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http:       &http.Client{Transport: tr},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		attempts:   attempts,
		retryBase:  cfg.RetryBase,
		retryMax:   cfg.RetryMax,
		userAgents: cfg.UserAgents,
		logger:     logger.With(slog.String("component", "transport")),
	}, nil
}

// retryableStatus reports whether an HTTP status is worth another attempt.
// 403 is included because the marketplace answers bot-detection trips with it
// and recovers on a later attempt with a different user agent.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusForbidden ||
		status >= 500
}

// Do issues the request with retries and returns the status and body of the
// final response. Non-retryable statuses return a *FetchError immediately;
// exhausting the attempt budget returns a *FetchError with Transient set.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (int, []byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("transport: rate limit wait: %w", err)
		}

		status, respBody, err := c.once(ctx, method, rawURL, headers, body)
		switch {
		case err == nil && !retryableStatus(status):
			if status >= 400 {
				return status, respBody, &FetchError{URL: rawURL, Status: status, Body: truncate(respBody)}
			}
			return status, respBody, nil
		case err == nil:
			lastErr = &FetchError{URL: rawURL, Status: status, Body: truncate(respBody), Transient: true}
		default:
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			lastErr = &FetchError{URL: rawURL, Transient: true, Err: err}
		}

		if attempt < c.attempts {
			delay := c.backoff(attempt)
			c.logger.Debug("retrying request",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return 0, nil, lastErr
}

// once performs a single HTTP exchange.
func (c *Client) once(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" && len(c.userAgents) > 0 {
		req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// backoff returns the exponential delay for the given 1-based attempt,
// clamped to the configured maximum.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryBase
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.retryMax > 0 && d >= c.retryMax {
			return c.retryMax
		}
	}
	if c.retryMax > 0 && d > c.retryMax {
		d = c.retryMax
	}
	return d
}

// GetJSON issues a GET request and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	_, body, err := c.Do(ctx, http.MethodGet, rawURL, headers, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("transport: decode %s: %w", rawURL, err)
	}
	return nil
}

// PostJSON marshals payload, POSTs it, and decodes the response into out when
// out is non-nil.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal payload: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	_, respBody, err := c.Do(ctx, http.MethodPost, rawURL, h, body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("transport: decode %s: %w", rawURL, err)
		}
	}
	return nil
}

// IsTransient reports whether err is a retried-and-exhausted fetch failure.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

func truncate(b []byte) string {
	if len(b) > maxErrBody {
		b = b[:maxErrBody]
	}
	return string(b)
}
