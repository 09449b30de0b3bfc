package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social/core"
	"golang.org/x/time/rate"
)

const (
	defaultRetryAttempts = 3
	defaultBaseDelay     = time.Second
)

// Config tunes a platform Client.
type Config struct {
	Platform       core.Platform
	HTTPClient     HTTPDoer
	Timeout        time.Duration
	RetryAttempts  int
	BaseDelay      time.Duration
	DefaultHeaders map[string]string
	// RequestsPerSecond enables client side pacing when positive.
	RequestsPerSecond float64
	Burst             int
	// Limiter, when set, is used instead of a client owned one so that
	// several clients can share a budget.
	Limiter *rate.Limiter
	Logger  core.Logger
}

// Client sends platform API requests through a RESTAdapter, retrying non 2xx
// responses and transient transport failures with exponential backoff.
type Client struct {
	platform  core.Platform
	adapter   *RESTAdapter
	timeout   time.Duration
	attempts  int
	baseDelay time.Duration
	limiter   *rate.Limiter
	logger    core.Logger
}

func NewClient(cfg Config) *Client {
	adapter := NewRESTAdapter(cfg.HTTPClient)
	for key, value := range cfg.DefaultHeaders {
		adapter.DefaultHeaders[key] = value
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	client := &Client{
		platform:  cfg.Platform,
		adapter:   adapter,
		timeout:   cfg.Timeout,
		attempts:  attempts,
		baseDelay: baseDelay,
		logger:    glog.Ensure(cfg.Logger),
	}
	switch {
	case cfg.Limiter != nil:
		client.limiter = cfg.Limiter
	case cfg.RequestsPerSecond > 0:
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return client
}

func (c *Client) Platform() core.Platform {
	if c == nil {
		return ""
	}
	return c.platform
}

func (c *Client) Attempts() int {
	if c == nil {
		return 0
	}
	return c.attempts
}

// Do sends req until it gets a 2xx response or runs out of attempts. The
// error returned after the last attempt is a provider error carrying the
// message extracted from the final response body.
func (c *Client) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if c == nil || c.adapter == nil {
		return core.TransportResponse{}, core.ConfigurationError("", "http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout <= 0 {
		req.Timeout = c.timeout
	}

	var (
		last    core.TransportResponse
		lastErr error
		attempt int
	)
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		res, err := c.adapter.Do(ctx, req)
		last, lastErr = res, err
		if err != nil {
			c.logAttempt(req, attempt, 0, err)
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if isSuccess(res.StatusCode) {
			c.logger.Debug("platform request succeeded",
				"platform", string(c.platform),
				"method", req.Method,
				"status_code", res.StatusCode,
				"attempt", attempt,
			)
			return nil
		}
		failure := fmt.Errorf("transport: status %d", res.StatusCode)
		c.logAttempt(req, attempt, res.StatusCode, failure)
		return failure
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.attempts-1)), ctx),
		func(_ error, wait time.Duration) {
			c.logger.Warn("retrying platform request",
				"platform", string(c.platform),
				"attempt", attempt,
				"wait_ms", wait.Milliseconds(),
			)
		},
	)
	if err == nil {
		return last, nil
	}
	return last, c.failure(last, lastErr, err)
}

// DoJSON sends req and decodes a successful body into out.
func (c *Client) DoJSON(ctx context.Context, req core.TransportRequest, out any) (core.TransportResponse, error) {
	res, err := c.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if out == nil || len(res.Body) == 0 {
		return res, nil
	}
	if err := DecodeJSON(res, out); err != nil {
		return res, core.ProviderError(c.platform, res.StatusCode, "unexpected response payload", err)
	}
	return res, nil
}

func (c *Client) failure(last core.TransportResponse, lastErr error, retryErr error) error {
	if lastErr != nil {
		return core.ProviderError(c.platform, 0, core.ErrorMessage(lastErr), lastErr)
	}
	if last.StatusCode == 0 {
		return core.ProviderError(c.platform, 0, retryErr.Error(), retryErr)
	}
	message := ExtractProviderMessage(last.Body)
	if message == "" {
		message = fmt.Sprintf("%s returned %d %s", c.platform, last.StatusCode, http.StatusText(last.StatusCode))
	}
	return core.ProviderError(c.platform, last.StatusCode, message, nil)
}

func (c *Client) logAttempt(req core.TransportRequest, attempt int, status int, err error) {
	c.logger.Warn("platform request failed",
		"platform", string(c.platform),
		"method", strings.ToUpper(req.Method),
		"status_code", status,
		"attempt", attempt,
		"max_attempts", c.attempts,
		"error", err.Error(),
	)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
