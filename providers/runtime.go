package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/transport"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
)

var errPollExhausted = errors.New("providers: upload did not finish in time")

// Runtime carries the HTTP and timing knobs every adapter needs.
type Runtime struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	RetryAttempts     int
	BaseDelay         time.Duration
	RequestsPerSecond float64
	Burst             int
	// Limits holds the per platform limiters shared by every client built
	// from copies of this runtime. See Shared.
	Limits *RateLimits
	Logger core.Logger
	Now    func() time.Time
	// PollInterval and PollAttempts bound status polling of async uploads.
	PollInterval time.Duration
	PollAttempts int
}

// RuntimeFromConfig maps the resolved service configuration.
func RuntimeFromConfig(cfg core.Config, logger core.Logger) Runtime {
	return Runtime{
		Timeout:           cfg.HTTPTimeout(),
		RetryAttempts:     cfg.RetryAttempts(),
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
		Logger:            logger,
	}.Shared()
}

// Shared attaches a limiter set when pacing is enabled. Adapters call it
// once at construction; clients built from any copy then share a budget.
func (r Runtime) Shared() Runtime {
	if r.Limits == nil && r.RequestsPerSecond > 0 {
		r.Limits = NewRateLimits(r.RequestsPerSecond, r.Burst)
	}
	return r
}

// RateLimits hands out one token bucket per platform.
type RateLimits struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[core.Platform]*rate.Limiter
}

func NewRateLimits(requestsPerSecond float64, burst int) *RateLimits {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimits{
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: map[core.Platform]*rate.Limiter{},
	}
}

// For returns the platform limiter, nil when pacing is off.
func (l *RateLimits) For(platform core.Platform) *rate.Limiter {
	if l == nil || l.limit <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[platform]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[platform] = limiter
	}
	return limiter
}

func (r Runtime) Client(platform core.Platform) *transport.Client {
	return r.ClientWithHeaders(platform, nil)
}

func (r Runtime) ClientWithHeaders(platform core.Platform, headers map[string]string) *transport.Client {
	return transport.NewClient(transport.Config{
		Platform:          platform,
		HTTPClient:        r.HTTP(),
		Timeout:           r.Timeout,
		RetryAttempts:     r.RetryAttempts,
		BaseDelay:         r.BaseDelay,
		DefaultHeaders:    headers,
		RequestsPerSecond: r.RequestsPerSecond,
		Burst:             r.Burst,
		Limiter:           r.Limits.For(platform),
		Logger:            r.Log(),
	})
}

func (r Runtime) HTTP() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (r Runtime) Log() core.Logger {
	return glog.Ensure(r.Logger)
}

func (r Runtime) CurrentTime() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Poll calls check until it reports done, an error, or the attempts run out.
func (r Runtime) Poll(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := r.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return errPollExhausted
}
