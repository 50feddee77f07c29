package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/internal/repository"
	"MacroGate/internal/services/execution"

	"github.com/stretchr/testify/require"
)

// 10:00 New York.
var t0 = time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	mu     sync.Mutex
	calls  map[string]int
	failed map[string]bool
	end    time.Time
}

func newFakeSource(end time.Time, failing ...string) *fakeSource {
	f := &fakeSource{calls: map[string]int{}, failed: map[string]bool{}, end: end}
	for _, t := range failing {
		f.failed[t] = true
	}
	return f
}

func (f *fakeSource) FetchSeries(_ context.Context, ticker string) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ticker]++
	if f.failed[ticker] {
		return nil, errors.New("upstream 502")
	}
	bars := make([]models.Bar, 30)
	for i := range bars {
		p := 100 + float64(i)*0.01
		bars[i] = models.Bar{
			Time:  f.end.Add(-time.Duration(len(bars)-i) * 5 * time.Minute),
			Open:  p,
			High:  p + 0.05,
			Low:   p - 0.05,
			Close: p + 0.01,
		}
	}
	return bars, nil
}

func (f *fakeSource) FetchLastPrice(_ context.Context, ticker string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed[ticker] {
		return 0, errors.New("upstream 502")
	}
	return 101.5, nil
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeMetrics struct {
	mu          sync.Mutex
	errors      map[string]int
	evaluations int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (m *fakeMetrics) RecordEvaluation(string, string, int) {
	m.mu.Lock()
	m.evaluations++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordBias(string, string, int) {}
func (m *fakeMetrics) RecordDriver(string, float64)   {}
func (m *fakeMetrics) RecordSnapshot(string)          {}
func (m *fakeMetrics) RecordLatency(string, float64)  {}

var testDrivers = DriverSpecs{
	DXY:   models.InstrumentSpec{ID: "DXY", Tickers: []string{"DX-Y.NYB", "DX=F"}, FallbackPrice: 104.2},
	US10Y: models.InstrumentSpec{ID: "US10Y", Tickers: []string{"^TNX"}, FallbackPrice: 4.25},
	VIX:   models.InstrumentSpec{ID: "VIX", Tickers: []string{"^VIX"}, FallbackPrice: 14.5},
}

var testInstruments = []models.InstrumentSpec{
	{ID: "EURUSD", Kind: models.KindInverseDollar, Tickers: []string{"EURUSD=X"}, FallbackPrice: 1.08},
	{ID: "XAUUSD", Kind: models.KindRateLed, Tickers: []string{"XAUUSD=X", "GC=F"}, FallbackPrice: 2000},
}

type evaluatorFixture struct {
	uc       *Evaluator
	source   *fakeSource
	clock    *fakeClock
	calendar *repository.CalendarStore
	metrics  *fakeMetrics
}

func newEvaluatorFixture(t *testing.T, failing ...string) *evaluatorFixture {
	t.Helper()
	engine, err := execution.NewEngine(execution.DefaultPolicy())
	require.NoError(t, err)
	f := &evaluatorFixture{
		source:   newFakeSource(t0, failing...),
		clock:    &fakeClock{t: t0},
		calendar: repository.NewCalendarStore(),
		metrics:  newFakeMetrics(),
	}
	f.uc = NewEvaluator(engine, f.source, f.calendar, testDrivers, testInstruments, f.metrics, f.clock, nil)
	return f
}

func metricFor(ev models.Evaluation, id string) (models.MarketMetric, bool) {
	for _, m := range ev.Metrics {
		if m.Instrument == id {
			return m, true
		}
	}
	return models.MarketMetric{}, false
}
