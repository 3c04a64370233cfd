// Package backend implements the resilient HTTP client of §4.1: retry with
// exponential backoff, a process-wide circuit breaker, and typed adapters
// that decouple upstream API drift from the service's internal domain
// records.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIPrefix  string
	AccessToken string
	Timeout    time.Duration
	Retry      RetryConfig
	Breaker    BreakerConfig
	RateLimit  RateLimitConfig
	Telemetry  telemetry.Bundle
}

// Client is the pooled, resilient HTTP client shared process-wide. Tokens
// may be hot-rotated without rebuilding the underlying *http.Client pool.
type Client struct {
	http    *http.Client
	baseURL string
	prefix  string
	token   atomic.Value // string
	retry   RetryConfig
	breaker *Breaker
	limiter *rate.Limiter // nil disables rate limiting
	tel     telemetry.Bundle
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: opts.BaseURL,
		prefix:  opts.APIPrefix,
		retry:   opts.Retry,
		breaker: NewBreaker(opts.Breaker),
		limiter: newLimiter(opts.RateLimit),
		tel:     opts.Telemetry.WithDefaults(),
	}
	c.token.Store(opts.AccessToken)
	return c
}

// RotateToken hot-swaps the bearer token used for outbound calls.
func (c *Client) RotateToken(token string) {
	c.token.Store(token)
}

// envelope is the upstream wrapper every backend response carries.
type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Get performs a GET against baseURL+apiPrefix+path (path already
// url.Values-encoded by the caller if it has a query string), applying the
// circuit breaker and retry policy, and returns the unwrapped `data` payload
// from the {code,message,data,timestamp} envelope.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperr.Wrap(apperr.KindTool, "rate limit wait for "+path, err)
		}
	}

	allowed, err := c.breaker.Allow()
	if !allowed {
		return nil, apperr.Wrap(apperr.KindCircuitOpen, "circuit open for "+path, err)
	}

	var result json.RawMessage
	retryErr := Do(ctx, c.retry, func(ctx context.Context) error {
		data, doErr := c.doGet(ctx, path)
		if doErr != nil {
			return doErr
		}
		result = data
		return nil
	})

	c.breaker.Report(retryErr == nil)
	if retryErr != nil {
		if ae, ok := retryErr.(*apperr.Error); ok {
			return nil, ae
		}
		return nil, apperr.Wrap(apperr.KindTool, "backend request failed: "+path, retryErr)
	}
	return result, nil
}

func (c *Client) doGet(ctx context.Context, path string) (json.RawMessage, error) {
	start := time.Now()
	full := c.baseURL + c.prefix + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	if token, _ := c.token.Load().(string); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.tel.Logger.Error(ctx, "backend request transport error", "path", path, "elapsedMs", elapsed.Milliseconds(), "err", err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	c.tel.Logger.Info(ctx, "backend request", "method", http.MethodGet, "path", path, "status", resp.StatusCode, "elapsedMs", elapsed.Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.Wrap(apperr.KindAuth, "backend rejected credentials", statusErrorFromResponse(path, resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErrorFromResponse(path, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("backend: malformed response for %s: %w", path, err)
	}
	if env.Code != 200 {
		return nil, &StatusError{StatusCode: env.Code, Path: path}
	}
	return env.Data, nil
}

// formatTeacherID is a small helper keeping path-building centralized so
// adapters never hand-splice IDs into URLs.
func formatTeacherID(id string) string { return url.PathEscape(id) }
