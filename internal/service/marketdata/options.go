package marketdata

import (
	"time"

	pkghttp "MacroGate/pkg/http"
	applogger "MacroGate/pkg/logger"
)

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithChartWindow sets the Yahoo range and interval query parameters.
func WithChartWindow(rangeParam, interval string) Option {
	return func(c *Client) {
		if rangeParam != "" {
			c.rangeParam = rangeParam
		}
		if interval != "" {
			c.interval = interval
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.ratePerSec = perSecond
		c.burst = burst
	}
}

// WithRetry configures exponential backoff for temporary failures.
func WithRetry(initial, max, maxElapsed time.Duration) Option {
	return func(c *Client) {
		c.retryInitial = initial
		c.retryMax = max
		c.retryElapsed = maxElapsed
	}
}

// WithBreaker configures the per-host circuit breaker.
func WithBreaker(maxRequests uint32, interval, timeout time.Duration, failures uint32) Option {
	return func(c *Client) {
		c.brMaxRequests = maxRequests
		c.brInterval = interval
		c.brTimeout = timeout
		c.brFailures = failures
	}
}

func WithHTTPClient(h *pkghttp.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.l = l
	}
}

// WithChartReuse keeps a chart response for d so the series and the last
// price of one ticker come from a single request. d <= 0 disables reuse.
func WithChartReuse(d time.Duration) Option {
	return func(c *Client) {
		c.reuse = d
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}
