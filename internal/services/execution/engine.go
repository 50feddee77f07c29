// Package execution is the deterministic decision core: it turns normalized
// market metrics, a calendar and a narrative into an execution verdict and
// a directional bias. Nothing here performs I/O or reads ambient state.
package execution

import (
	"fmt"
	"time"

	"MacroGate/internal/domain/models"
)

// Inputs carries everything one evaluation needs.
type Inputs struct {
	Now         time.Time
	Instrument  models.InstrumentSpec
	Drivers     models.Drivers
	Instruments []models.MarketMetric
	Calendar    []models.ScheduledEvent
	Narrative   models.Narrative
}

// Engine evaluates Inputs under a validated Policy. It is safe for
// concurrent use.
type Engine struct {
	policy   Policy
	sessions *SessionTable
	loc      *time.Location
}

// NewEngine validates p and compiles its session table. A
// ConfigurationError here is fatal to the caller.
func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	sessions, err := NewSessionTable(p.Sessions, p.OffHoursPhase, loc)
	if err != nil {
		return nil, err
	}
	return &Engine{policy: p, sessions: sessions, loc: loc}, nil
}

func (e *Engine) Policy() Policy           { return e.policy }
func (e *Engine) Location() *time.Location { return e.loc }
func (e *Engine) Sessions() *SessionTable  { return e.sessions }

// SessionPhase returns the configured phase for now.
func (e *Engine) SessionPhase(now time.Time) models.SessionPhase {
	return e.sessions.PhaseAt(now)
}

// Normalize converts a fetched series in the engine's timezone.
func (e *Engine) Normalize(instrument string, in SeriesInput, now time.Time) models.MarketMetric {
	return Normalize(instrument, in, now.In(e.loc), e.policy)
}

// Evaluate runs the full pipeline. Identical inputs give identical output.
func (e *Engine) Evaluate(in Inputs) models.Evaluation {
	p := e.policy
	now := in.Now.In(e.loc)
	phase := e.sessions.PhaseAt(now)
	offHours := string(phase) == p.OffHoursPhase

	ages := []*float64{in.Drivers.DXY.BarAgeMinutes, in.Drivers.US10Y.BarAgeMinutes, in.Drivers.VIX.BarAgeMinutes}
	metrics := []models.MarketMetric{in.Drivers.DXY, in.Drivers.US10Y, in.Drivers.VIX}
	states := []models.RegimeState{
		Classify(in.Drivers.DXY, false, p),
		Classify(in.Drivers.US10Y, false, p),
		Classify(in.Drivers.VIX, true, p),
	}
	var target *models.MarketMetric
	for i := range in.Instruments {
		m := in.Instruments[i]
		ages = append(ages, m.BarAgeMinutes)
		metrics = append(metrics, m)
		states = append(states, Classify(m, false, p))
		if m.Instrument == in.Instrument.ID {
			target = &in.Instruments[i]
		}
	}
	quality, qualityNote := AssessDataQuality(ages, p.StaleAfterMinutes)
	regimes := ClassifyDrivers(in.Drivers, p)

	spike := HeadlineSpike(in.Narrative)
	event := Assess(now, in.Calendar, regimes.VIX, in.Narrative, p)
	fakeout := FakeoutRisk(regimes.DXY, regimes.VIX, in.Narrative.Pressure)

	verdict := BuildVerdict(ScoreInputs{
		Stress:      regimes.VIX,
		Event:       event.Level,
		Fakeout:     fakeout,
		DXY:         regimes.DXY,
		OffHours:    offHours,
		DataQuality: quality,
	}, p)

	bias := ComputeBias(BiasInputs{
		Instrument:    in.Instrument,
		Phase:         phase,
		DataQuality:   quality,
		Regimes:       regimes,
		DXYImpulse:    in.Drivers.DXY.ImpulsePct,
		RateImpulse:   in.Drivers.US10Y.ImpulsePct,
		StressImpulse: in.Drivers.VIX.ImpulsePct,
		Event:         event,
		Fakeout:       fakeout,
	}, p)

	flags := BuildFlags(fakeout, event, regimes, spike)

	ev := models.Evaluation{
		Timestamp:    now,
		Instrument:   in.Instrument.ID,
		SessionPhase: phase,
		DataQuality:  quality,
		QualityNote:  qualityNote,
		Narrative:    in.Narrative,
		Drivers:      in.Drivers,
		Regimes:      regimes,
		Metrics:      metrics,
		States:       states,
		Event:        event,
		Fakeout:      fakeout,
		Distortion:   DistortionOverlay(event.Level, in.Narrative.Pressure, regimes.VIX),
		Verdict:      verdict,
		Bias:         bias,
		Flags:        flags,
		Plan: BuildActionPlan(PlanInputs{
			Verdict:     verdict.Label,
			Event:       event,
			Flags:       flags,
			DataQuality: quality,
			Phase:       phase,
		}, p),
	}
	if target != nil {
		g := BuildGuidance(GuidanceInputs{
			Instrument:   in.Instrument,
			Metric:       *target,
			Drivers:      in.Drivers,
			Regimes:      regimes,
			Event:        event,
			Pressure:     in.Narrative.Pressure,
			LowSignalPct: p.LowSignalImpulse,
		}, p)
		ev.Guidance = &g
	}
	return ev
}
