package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/internal/services/execution"
	applogger "MacroGate/pkg/logger"
	"MacroGate/pkg/util"
)

var ErrUnknownInstrument = errors.New("unknown instrument")

// DriverSpecs names the three reference series.
type DriverSpecs struct {
	DXY   models.InstrumentSpec
	US10Y models.InstrumentSpec
	VIX   models.InstrumentSpec
}

// EvaluateParams selects one evaluation. A zero At means now.
type EvaluateParams struct {
	Instrument string
	Narrative  models.Narrative
	At         time.Time
}

type memoKey struct {
	instrument string
	narrative  models.Narrative
	calendar   uint64
	minute     int64
}

// Evaluator fetches market data, normalizes it and runs the engine.
// Results are memoized per minute so API polling does not hit upstream.
type Evaluator struct {
	engine      *execution.Engine
	source      domrepo.SeriesSource
	calendar    domrepo.CalendarStore
	drivers     DriverSpecs
	instruments []models.InstrumentSpec
	metrics     domrepo.Metrics
	clock       domrepo.Clock
	timeout     time.Duration
	l           *applogger.Logger

	mu   sync.Mutex
	memo map[memoKey]models.Evaluation
}

func NewEvaluator(
	engine *execution.Engine,
	source domrepo.SeriesSource,
	calendar domrepo.CalendarStore,
	drivers DriverSpecs,
	instruments []models.InstrumentSpec,
	metrics domrepo.Metrics,
	clock domrepo.Clock,
	l *applogger.Logger,
) *Evaluator {
	if clock == nil {
		clock = domrepo.SystemClock{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Evaluator{
		engine:      engine,
		source:      source,
		calendar:    calendar,
		drivers:     drivers,
		instruments: instruments,
		metrics:     metrics,
		clock:       clock,
		timeout:     20 * time.Second,
		l:           l.Component("evaluator"),
		memo:        make(map[memoKey]models.Evaluation),
	}
}

// Instruments lists the configured instrument IDs in order.
func (uc *Evaluator) Instruments() []string {
	out := make([]string, len(uc.instruments))
	for i, s := range uc.instruments {
		out[i] = s.ID
	}
	return out
}

// Engine exposes the decision core for session lookups and parsing.
func (uc *Evaluator) Engine() *execution.Engine { return uc.engine }

// Evaluate returns the evaluation for one instrument.
func (uc *Evaluator) Evaluate(ctx context.Context, p EvaluateParams) (models.Evaluation, error) {
	spec, ok := uc.lookup(p.Instrument)
	if !ok {
		return models.Evaluation{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, p.Instrument)
	}
	now := p.At
	if now.IsZero() {
		now = uc.clock.Now()
	}
	key := memoKey{instrument: spec.ID, narrative: p.Narrative, calendar: uc.calendar.Version(), minute: util.Bucket(now, time.Minute)}
	if ev, ok := uc.cached(key); ok {
		return ev, nil
	}

	evs, err := uc.run(ctx, now, p.Narrative, []models.InstrumentSpec{spec})
	if err != nil {
		return models.Evaluation{}, err
	}
	uc.store(key, evs[0])
	return evs[0], nil
}

// EvaluateAll evaluates every configured instrument from one fetch.
func (uc *Evaluator) EvaluateAll(ctx context.Context, n models.Narrative) ([]models.Evaluation, error) {
	now := uc.clock.Now()
	version := uc.calendar.Version()
	evs, err := uc.run(ctx, now, n, uc.instruments)
	if err != nil {
		return nil, err
	}
	for _, ev := range evs {
		uc.store(memoKey{instrument: ev.Instrument, narrative: n, calendar: version, minute: util.Bucket(now, time.Minute)}, ev)
	}
	return evs, nil
}

func (uc *Evaluator) run(ctx context.Context, now time.Time, n models.Narrative, targets []models.InstrumentSpec) ([]models.Evaluation, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	calendar, err := uc.calendar.LoadCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}

	series := uc.fetchAll(ctx, now)
	drivers := models.Drivers{
		DXY:   series[uc.drivers.DXY.ID],
		US10Y: series[uc.drivers.US10Y.ID],
		VIX:   series[uc.drivers.VIX.ID],
	}
	instruments := make([]models.MarketMetric, 0, len(uc.instruments))
	for _, s := range uc.instruments {
		instruments = append(instruments, series[s.ID])
	}

	out := make([]models.Evaluation, 0, len(targets))
	for _, spec := range targets {
		ev := uc.engine.Evaluate(execution.Inputs{
			Now:         now,
			Instrument:  spec,
			Drivers:     drivers,
			Instruments: instruments,
			Calendar:    calendar,
			Narrative:   n,
		})
		uc.record(ev)
		out = append(out, ev)
	}
	if uc.metrics != nil {
		uc.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	}
	return out, nil
}

type fetched struct {
	id     string
	metric models.MarketMetric
}

// fetchAll loads the drivers and every instrument concurrently. A failed
// fetch yields a defaulted metric rather than an error.
func (uc *Evaluator) fetchAll(ctx context.Context, now time.Time) map[string]models.MarketMetric {
	specs := append([]models.InstrumentSpec{uc.drivers.DXY, uc.drivers.US10Y, uc.drivers.VIX}, uc.instruments...)

	ch := make(chan fetched, len(specs))
	var wg sync.WaitGroup
	for _, spec := range specs {
		wg.Add(1)
		go func(spec models.InstrumentSpec) {
			defer wg.Done()
			in := uc.fetchSeries(ctx, spec)
			ch <- fetched{id: spec.ID, metric: uc.engine.Normalize(spec.ID, in, now)}
		}(spec)
	}
	go func() { wg.Wait(); close(ch) }()

	out := make(map[string]models.MarketMetric, len(specs))
	for f := range ch {
		out[f.id] = f.metric
	}
	return out
}

// fetchSeries walks the ticker fallback chain and returns the first ticker
// with bars. The last price is optional.
func (uc *Evaluator) fetchSeries(ctx context.Context, spec models.InstrumentSpec) execution.SeriesInput {
	in := execution.SeriesInput{Fallback: spec.FallbackPrice}
	if len(spec.Tickers) > 0 {
		in.Ticker = spec.Tickers[0]
	}
	for _, ticker := range spec.Tickers {
		bars, err := uc.source.FetchSeries(ctx, ticker)
		if err != nil {
			uc.fetchFailed(spec.ID, ticker, err)
			continue
		}
		in.Ticker, in.Bars = ticker, bars
		if price, err := uc.source.FetchLastPrice(ctx, ticker); err == nil {
			in.LastPrice, in.HasLastPrice = price, true
		}
		return in
	}
	return in
}

func (uc *Evaluator) fetchFailed(id, ticker string, err error) {
	if uc.metrics != nil {
		uc.metrics.RecordError("fetch_series")
	}
	uc.l.Warn("series fetch failed",
		applogger.String("instrument", id),
		applogger.String("ticker", ticker),
		applogger.Error(err))
}

func (uc *Evaluator) record(ev models.Evaluation) {
	if uc.metrics != nil {
		uc.metrics.RecordEvaluation(ev.Instrument, string(ev.Verdict.Label), ev.Verdict.Score)
		uc.metrics.RecordBias(ev.Instrument, string(ev.Bias.Direction), ev.Bias.Confidence)
		uc.metrics.RecordDriver("DXY", ev.Drivers.DXY.LastValue)
		uc.metrics.RecordDriver("US10Y", ev.Drivers.US10Y.LastValue)
		uc.metrics.RecordDriver("VIX", ev.Drivers.VIX.LastValue)
	}
	uc.l.Debug("evaluation",
		applogger.String("instrument", ev.Instrument),
		applogger.String("verdict", string(ev.Verdict.Label)),
		applogger.Int("score", ev.Verdict.Score),
		applogger.String("direction", string(ev.Bias.Direction)),
		applogger.String("data_quality", string(ev.DataQuality)))
}

func (uc *Evaluator) lookup(id string) (models.InstrumentSpec, bool) {
	for _, s := range uc.instruments {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return models.InstrumentSpec{}, false
}

func (uc *Evaluator) cached(k memoKey) (models.Evaluation, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	ev, ok := uc.memo[k]
	return ev, ok
}

// store keeps only the newest minute.
func (uc *Evaluator) store(k memoKey, ev models.Evaluation) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for old := range uc.memo {
		if old.minute < k.minute {
			delete(uc.memo, old)
		}
	}
	uc.memo[k] = ev
}
