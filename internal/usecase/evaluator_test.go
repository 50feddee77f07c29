package usecase

import (
	"context"
	"testing"
	"time"

	"MacroGate/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lowNormal = models.Narrative{Pressure: models.PressureLow, Frequency: models.FrequencyNormal}

func TestEvaluatorFollowsTickerFallbacks(t *testing.T) {
	f := newEvaluatorFixture(t, "XAUUSD=X", "DX-Y.NYB")

	ev, err := f.uc.Evaluate(context.Background(), EvaluateParams{Instrument: "xauusd", Narrative: lowNormal})
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", ev.Instrument)
	assert.Equal(t, models.QualityLive, ev.DataQuality)

	gold, ok := metricFor(ev, "XAUUSD")
	require.True(t, ok)
	assert.Equal(t, "GC=F", gold.Ticker)
	assert.Equal(t, 101.5, gold.LastValue)
	assert.Equal(t, "DX=F", ev.Drivers.DXY.Ticker)
	assert.Equal(t, 2, f.metrics.errors["fetch_series"])
}

func TestEvaluatorDefaultsWhenEverythingFails(t *testing.T) {
	f := newEvaluatorFixture(t, "DX-Y.NYB", "DX=F", "^TNX", "^VIX", "EURUSD=X", "XAUUSD=X", "GC=F")

	ev, err := f.uc.Evaluate(context.Background(), EvaluateParams{Instrument: "EURUSD", Narrative: lowNormal})
	require.NoError(t, err)
	assert.Equal(t, models.QualityUnknown, ev.DataQuality)
	assert.Equal(t, 104.2, ev.Drivers.DXY.LastValue)
	assert.Equal(t, "DX-Y.NYB", ev.Drivers.DXY.Ticker)
	for _, m := range ev.Metrics {
		assert.True(t, m.IsDefaulted(), m.Instrument)
	}
	assert.Equal(t, 7, f.metrics.errors["fetch_series"])
}

func TestEvaluatorMemoizesPerMinuteAndCalendarVersion(t *testing.T) {
	ctx := context.Background()
	f := newEvaluatorFixture(t)
	p := EvaluateParams{Instrument: "EURUSD", Narrative: lowNormal}

	first, err := f.uc.Evaluate(ctx, p)
	require.NoError(t, err)
	calls := f.source.total()
	assert.Equal(t, 5, calls)

	f.clock.Advance(20 * time.Second)
	second, err := f.uc.Evaluate(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, calls, f.source.total())
	assert.Equal(t, first.Timestamp, second.Timestamp)

	f.calendar.Add(models.ScheduledEvent{Time: t0.Add(time.Hour), Title: "CPI", Impact: models.ImpactHigh})
	third, err := f.uc.Evaluate(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2*calls, f.source.total())
	assert.Equal(t, models.ModeCalendar, third.Event.Mode)

	p.Narrative = models.Narrative{Pressure: models.PressureHigh, Frequency: models.FrequencyElevated}
	_, err = f.uc.Evaluate(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3*calls, f.source.total())

	f.clock.Advance(time.Minute)
	_, err = f.uc.Evaluate(ctx, EvaluateParams{Instrument: "EURUSD", Narrative: lowNormal})
	require.NoError(t, err)
	assert.Equal(t, 4*calls, f.source.total())
}

func TestEvaluatorUnknownInstrument(t *testing.T) {
	f := newEvaluatorFixture(t)
	_, err := f.uc.Evaluate(context.Background(), EvaluateParams{Instrument: "GBPUSD", Narrative: lowNormal})
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestEvaluateAllSharesOneFetch(t *testing.T) {
	ctx := context.Background()
	f := newEvaluatorFixture(t)

	evs, err := f.uc.EvaluateAll(ctx, lowNormal)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "EURUSD", evs[0].Instrument)
	assert.Equal(t, "XAUUSD", evs[1].Instrument)
	assert.Equal(t, 5, f.source.total())
	assert.Equal(t, 2, f.metrics.evaluations)

	_, err = f.uc.Evaluate(ctx, EvaluateParams{Instrument: "XAUUSD", Narrative: lowNormal})
	require.NoError(t, err)
	assert.Equal(t, 5, f.source.total())
	assert.Equal(t, []string{"EURUSD", "XAUUSD"}, f.uc.Instruments())
}
