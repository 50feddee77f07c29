package execution

import (
	"fmt"
	"math"
	"slices"

	"MacroGate/internal/domain/models"
)

// GuidanceInputs feeds the per-instrument execution suggestion.
type GuidanceInputs struct {
	Instrument   models.InstrumentSpec
	Metric       models.MarketMetric
	Drivers      models.Drivers
	Regimes      models.DriverRegimes
	Event        models.EventRiskAssessment
	Pressure     models.NarrativePressure
	LowSignalPct float64
}

type guideLines struct{ action, avoid, play string }

// BuildGuidance gives execution guidance without a direction. Rate-led
// instruments get the gold module, inverse-dollar instruments the euro one.
func BuildGuidance(in GuidanceInputs, p Policy) models.InstrumentGuidance {
	vol := ClassifyVolatility(in.Metric.ATRRatio, p.Volatility)
	g := models.InstrumentGuidance{
		Instrument: in.Instrument.ID,
		ATRRatio:   in.Metric.ATRRatio,
		VolState:   vol,
		ImpulsePct: in.Metric.ImpulsePct,
		LowSignal:  math.Abs(in.Metric.ImpulsePct) < in.LowSignalPct,
		Distortion: DistortionOverlay(in.Event.Level, in.Pressure, in.Regimes.VIX),
	}

	var lines guideLines
	if in.Instrument.Kind == models.KindInverseDollar {
		lines = euroLines(g.Distortion, vol, in.Event.WithinWindow)
		state, note := DollarPressure(in.Drivers.DXY.ImpulsePct, in.Regimes.DXY)
		g.Indicators = []models.Indicator{
			{Name: "dollar_pressure", State: state, Note: note},
			{Name: "event_distortion", State: string(g.Distortion), Note: fmt.Sprintf("Events: %s | VIX: %s", in.Event.Level, in.Regimes.VIX)},
		}
	} else {
		highDistortion := in.Event.Level == models.EventHigh || in.Regimes.VIX == models.Dirty
		lines = goldLines(highDistortion, in.Event.WithinWindow, vol)
		align, alignNote := GoldAlignment(in.Drivers.DXY.ImpulsePct, in.Metric.ImpulsePct)
		yield, yieldNote := YieldProxy(in.Regimes.US10Y)
		g.Indicators = []models.Indicator{
			{Name: "gold_alignment", State: align, Note: alignNote},
			{Name: "yield_proxy", State: yield, Note: yieldNote},
		}
	}
	if g.LowSignal {
		lines.action += " (Low signal: very small 60m impulse)"
		lines.avoid += " (Weak impulse: relative noise is higher)"
	}
	g.Action, g.Avoid, g.Play = lines.action, lines.avoid, lines.play
	return g
}

func goldLines(highDistortion, withinWindow bool, vol models.VolatilityRegime) guideLines {
	var l guideLines
	switch {
	case highDistortion || withinWindow:
		l.action = "Wait: execute only after confirmation, prefer the retest."
		l.avoid = "Do not take the first break; do not chase large candles."
	case vol == models.Compression:
		l.action = "Breakout allowed ONLY with a retest (A+ setups)."
		l.avoid = "No chasing the first impulse; beware fakeouts in compression."
	case vol == models.Expansion:
		l.action = "Execute pullback/retest; avoid late entries."
		l.avoid = "Do not chase extended breakouts (reversal risk)."
	default:
		l.action = "Execute A+ setups with confirmation (ideally a retest)."
		l.avoid = "Avoid impulsive entries without structure."
	}
	switch {
	case highDistortion:
		l.play = "High distortion: avoid first impulse, wait retest/confirmation"
	case vol == models.Compression:
		l.play = "Compression: breakout ok but only with retest"
	case vol == models.Expansion:
		l.play = "Expansion: avoid chasing, wait pullback"
	default:
		l.play = "Balanced: execute A+ setups with confirmation"
	}
	return l
}

func euroLines(d models.Distortion, vol models.VolatilityRegime, withinWindow bool) guideLines {
	var l guideLines
	switch {
	case d == models.DistortionHigh || withinWindow:
		l.action = "Wait for confirmation; execute only after retest/structure."
		l.avoid = "No chase; avoid entries near the event/window."
	case vol == models.Compression:
		l.action = "Prefer range/mean-reversion unless a breakout is confirmed with a retest."
		l.avoid = "Do not execute breakouts without a retest (high fakeout in compression)."
	case vol == models.Expansion:
		l.action = "Trend ok: execute pullbacks/retests, no late entries."
		l.avoid = "Do not chase extended impulses (whipsaw risk)."
	default:
		l.action = "A+ setups only; confirmation + retest preferred."
		l.avoid = "Avoid decisions on a single candle."
	}
	switch {
	case d == models.DistortionHigh:
		l.play = "High distortion: avoid first impulse, wait confirmation"
	case vol == models.Compression:
		l.play = "Compression: range/mean-reversion unless DXY breaks"
	case vol == models.Expansion:
		l.play = "Expansion: trend ok, wait retest"
	default:
		l.play = "Balanced: A+ setups only, no chasing"
	}
	return l
}

// DollarPressure summarizes USD pressure on an inverse-dollar pair.
func DollarPressure(dxyImpulse float64, dxy models.VolatilityRegime) (string, string) {
	switch {
	case dxy == models.Expansion && dxyImpulse > 0.05:
		return "ACTIVE", "Impulse +"
	case dxy == models.Compression && math.Abs(dxyImpulse) < 0.05:
		return "NEUTRAL", "Impulse flat"
	case dxyImpulse < -0.05:
		return "SOFT", "Impulse -"
	default:
		return "ACTIVE", "Impulse mixed"
	}
}

// GoldAlignment is ALIGNED when gold moves against the dollar.
func GoldAlignment(dxyImpulse, goldImpulse float64) (string, string) {
	switch {
	case (dxyImpulse > 0 && goldImpulse < 0) || (dxyImpulse < 0 && goldImpulse > 0):
		return "ALIGNED", "Inverse link stable"
	case (dxyImpulse > 0 && goldImpulse > 0) || (dxyImpulse < 0 && goldImpulse < 0):
		return "DIVERGENT", "Inverse link unstable (fakeouts)"
	default:
		return "NEUTRAL", "No clear impulse relationship"
	}
}

// YieldProxy reads the rate regime as pressure on gold.
func YieldProxy(rate models.RateRegime) (string, string) {
	switch rate {
	case models.Rising:
		return "PRESSURE", "Yields rising"
	case models.Reversing:
		return "RELIEF", "Yields falling"
	default:
		return "NEUTRAL", "Yields stable"
	}
}

// BuildFlags derives the quick read-outs shown next to the verdict.
func BuildFlags(fakeout models.RiskLevel, event models.EventRiskAssessment, r models.DriverRegimes, spike bool) models.Flags {
	f := models.Flags{
		FirstImpulseRisk: models.Off,
		ChopRisk:         models.RiskLow,
		EventWindow:      event.WithinWindow,
		HeadlineSpike:    models.Off,
	}
	if fakeout == models.RiskHigh || fakeout == models.RiskModerate || event.WithinWindow || r.DXY == models.Compression {
		f.FirstImpulseRisk = models.On
	}
	if r.DXY == models.Compression {
		f.ChopRisk = models.RiskModerate
		if r.VIX == models.Caution || r.VIX == models.Dirty {
			f.ChopRisk = models.RiskHigh
		}
	}
	if spike {
		f.HeadlineSpike = models.On
	}
	return f
}

// PlanInputs feeds BuildActionPlan.
type PlanInputs struct {
	Verdict     models.VerdictLabel
	Event       models.EventRiskAssessment
	Flags       models.Flags
	DataQuality models.DataQuality
	Phase       models.SessionPhase
}

// BuildActionPlan turns the verdict into a tag, an action, plan steps and the
// rules currently in force.
func BuildActionPlan(in PlanInputs, p Policy) models.ActionPlan {
	var rules []string
	if in.DataQuality == models.QualityStale {
		rules = append(rules, "Data STALE: confirm in your broker/chart before executing.")
	}
	if string(in.Phase) == p.OffHoursPhase || slices.Contains(p.ThinPhases, string(in.Phase)) {
		rules = append(rules, "Thin session (Lunch/Off-hours): if trading, A+ with retest only.")
	}
	if in.Event.Level == models.EventHigh || in.Event.Level == models.EventModerate || in.Event.WithinWindow {
		rules = append(rules, "Event nearby: no first impulse. Wait for a retest or for the window to pass.")
	}
	if in.Flags.FirstImpulseRisk == models.On {
		rules = append(rules, "FIRST IMPULSE = ON: no chasing. Retest/confirmation only.")
	}
	if len(rules) == 0 {
		rules = append(rules, "Nothing critical active. Still: A+ setups and no overtrading.")
	}

	plan := models.ActionPlan{Rules: rules}
	switch in.Verdict {
	case models.VerdictAvoid:
		plan.Tag = "NO TRADE / OBSERVE"
		plan.Action = "The market is dirty for intraday today. Do not trade, or paper trade and observe."
		plan.Plan = []string{
			"Do not take breakouts.",
			"If you trade anyway: 1 trade max, minimum size, retest + extra confirmation only.",
		}
	case models.VerdictCaution:
		plan.Tag = "TRADE WITH RULES"
		plan.Action = "You can trade like a sniper: few entries, reduced size, retest mandatory."
		plan.Plan = []string{
			"Reduce size (e.g. 0.25-0.5x).",
			"A+ setups only (your favourite pattern), prefer the retest.",
			"Max 2 attempts if stopped out (no revenge).",
		}
	default:
		plan.Tag = "OK TO TRADE"
		plan.Action = "Clean conditions. Execute your normal technical plan, without chasing candles."
		plan.Plan = []string{
			"Prioritise retest/confirmation (better fill, fewer fakeouts).",
			"Avoid entering late on a large candle.",
			"If you lose 1 trade: pause and re-evaluate (no chaining).",
		}
	}
	return plan
}
