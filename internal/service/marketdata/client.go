package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"sync"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	pkghttp "MacroGate/pkg/http"
	applogger "MacroGate/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker for the upstream host is open.
var ErrCircuitOpen = errors.New("marketdata: circuit open")

// Client reads Yahoo v8 chart JSON.
type Client struct {
	baseURL    string
	rangeParam string
	interval   string

	ratePerSec float64
	burst      int
	limiter    *rate.Limiter

	retryInitial time.Duration
	retryMax     time.Duration
	retryElapsed time.Duration

	brMaxRequests uint32
	brInterval    time.Duration
	brTimeout     time.Duration
	brFailures    uint32
	brMu          sync.Mutex
	breakers      map[string]*gobreaker.CircuitBreaker

	reuse    time.Duration
	now      func() time.Time
	recentMu sync.Mutex
	recent   map[string]recentChart

	http *pkghttp.Client
	l    *applogger.Logger
}

type recentChart struct {
	res *chartResult
	at  time.Time
}

var _ domrepo.SeriesSource = (*Client)(nil)

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:       "https://query1.finance.yahoo.com",
		rangeParam:    "5d",
		interval:      "5m",
		ratePerSec:    2,
		burst:         4,
		retryInitial:  300 * time.Millisecond,
		retryMax:      3 * time.Second,
		retryElapsed:  10 * time.Second,
		brMaxRequests: 1,
		brInterval:    time.Minute,
		brTimeout:     30 * time.Second,
		brFailures:    5,
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
		reuse:         15 * time.Second,
		now:           time.Now,
		recent:        make(map[string]recentChart),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := url.ParseRequestURI(c.baseURL); err != nil {
		return nil, fmt.Errorf("marketdata base url: %w", err)
	}
	if c.http == nil {
		c.http = pkghttp.NewClient(pkghttp.WithTimeout(10 * time.Second))
	}
	if c.l == nil {
		c.l = applogger.Nop()
	}
	c.limiter = rate.NewLimiter(rate.Limit(c.ratePerSec), c.burst)
	return c, nil
}

// FetchSeries returns complete bars sorted ascending.
func (c *Client) FetchSeries(ctx context.Context, ticker string) ([]models.Bar, error) {
	res, err := c.chart(ctx, ticker)
	if err != nil {
		return nil, err
	}
	bars := res.bars()
	if len(bars) == 0 {
		return nil, domrepo.ErrNoSeries
	}
	return bars, nil
}

// FetchLastPrice reads meta.regularMarketPrice.
func (c *Client) FetchLastPrice(ctx context.Context, ticker string) (float64, error) {
	res, err := c.chart(ctx, ticker)
	if err != nil {
		return 0, err
	}
	p := res.Meta.RegularMarketPrice
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, domrepo.ErrNoSeries
	}
	return *p, nil
}

// chart serves a response fetched within the reuse window before going to
// the network.
func (c *Client) chart(ctx context.Context, ticker string) (*chartResult, error) {
	if res, ok := c.reused(ticker); ok {
		return res, nil
	}
	res, err := c.fetchChart(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if c.reuse > 0 {
		c.recentMu.Lock()
		c.recent[ticker] = recentChart{res: res, at: c.now()}
		c.recentMu.Unlock()
	}
	return res, nil
}

func (c *Client) reused(ticker string) (*chartResult, bool) {
	if c.reuse <= 0 {
		return nil, false
	}
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	r, ok := c.recent[ticker]
	if !ok {
		return nil, false
	}
	if c.now().Sub(r.at) >= c.reuse {
		delete(c.recent, ticker)
		return nil, false
	}
	return r.res, true
}

func (c *Client) fetchChart(ctx context.Context, ticker string) (*chartResult, error) {
	endpoint := c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker)
	cb := c.breaker(endpoint)

	var out *chartResult
	attempts := 0
	op := func() error {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		v, err := cb.Execute(func() (interface{}, error) {
			return c.fetch(ctx, endpoint)
		})
		if err != nil {
			return classify(err)
		}
		out = v.(*chartResult)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	b.MaxElapsedTime = c.retryElapsed

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		c.l.Warn("chart fetch failed",
			applogger.String("ticker", ticker),
			applogger.Int("attempts", attempts),
			applogger.Error(err))
		return nil, fmt.Errorf("fetch chart %s: %w", ticker, err)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*chartResult, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    endpoint,
		QueryParams: map[string][]string{
			"range":    {c.rangeParam},
			"interval": {c.interval},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, &chartError{Code: resp.Chart.Error.Code, Description: resp.Chart.Error.Description}
	}
	if len(resp.Chart.Result) == 0 {
		return nil, domrepo.ErrNoSeries
	}
	return &resp.Chart.Result[0], nil
}

func (c *Client) breaker(endpoint string) *gobreaker.CircuitBreaker {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil {
		host = u.Host
	}

	c.brMu.Lock()
	defer c.brMu.Unlock()
	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	failures := c.brFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketdata:" + host,
		MaxRequests: c.brMaxRequests,
		Interval:    c.brInterval,
		Timeout:     c.brTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	})
	c.breakers[host] = cb
	return cb
}

// classify marks errors that retrying cannot fix as permanent.
func classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrCircuitOpen, err))
	}
	if !retryable(err) {
		return backoff.Permanent(err)
	}
	return err
}

// retryable is true for transport failures and 429/5xx responses.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domrepo.ErrNoSeries) {
		return false
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ce *chartError
	if errors.As(err, &ce) {
		return false
	}
	return true
}

type chartError struct {
	Code        string
	Description string
}

func (e *chartError) Error() string {
	return fmt.Sprintf("chart error %s: %s", e.Code, e.Description)
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			High  []*float64 `json:"high"`
			Low   []*float64 `json:"low"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// bars drops rows with any missing or non-finite field.
func (r *chartResult) bars() []models.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	out := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, okO := at(q.Open, i)
		h, okH := at(q.High, i)
		l, okL := at(q.Low, i)
		cl, okC := at(q.Close, i)
		if !okO || !okH || !okL || !okC {
			continue
		}
		out = append(out, models.Bar{Time: time.Unix(ts, 0).UTC(), Open: o, High: h, Low: l, Close: cl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	v := *vals[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
