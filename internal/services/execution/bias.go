package execution

import (
	"fmt"
	"math"

	"MacroGate/internal/domain/models"
)

// BiasInputs is everything the directional engine reads.
type BiasInputs struct {
	Instrument    models.InstrumentSpec
	Phase         models.SessionPhase
	DataQuality   models.DataQuality
	Regimes       models.DriverRegimes
	DXYImpulse    float64
	RateImpulse   float64
	StressImpulse float64
	Event         models.EventRiskAssessment
	Fakeout       models.RiskLevel
}

const (
	playbookRetest   = "Direction OK but fakeout risk: no chase. Wait for retest + confirmation (M15/H1)."
	playbookPullback = "Direction OK: execute pullback/retest. Avoid entering late on a large candle."
	playbookFilter   = "NEUTRAL: the filter decides today. Trade only A+ setups with a retest and no event nearby."
	playbookWeak     = "Weak bias: NEUTRAL. Do not force it. If trading: A+ retest only."
	playbookStale    = "Data STALE: confirm in your broker. If trading, A+ retest only."
	playbookDirty    = "VIX Dirty: high whipsaw. Avoid direction; observe or take only very selective retests."
	playbookEvent    = "Event in window: no first impulse. Wait 15-30m and trade the retest only."

	reasonConfidenceLow = "Confidence low"
)

// ComputeBias derives the directional bias for the active session window.
// Outside that window it always returns WAIT with confidence 0.
func ComputeBias(in BiasInputs, p Policy) models.DirectionalBias {
	bp := p.Bias
	out := models.DirectionalBias{Instrument: in.Instrument.ID}
	gated := func(d models.Direction, conf int, playbook, reason string) models.DirectionalBias {
		out.Direction, out.Confidence, out.Playbook, out.Reasons = d, conf, playbook, []string{reason}
		return out
	}

	if string(in.Phase) != p.ActivePhase {
		return gated(models.DirectionWait, 0,
			fmt.Sprintf("Outside %s. Do not force a direction.", p.ActivePhase),
			fmt.Sprintf("Session != %s", p.ActivePhase))
	}
	switch {
	case in.DataQuality == models.QualityStale:
		return gated(models.DirectionNeutral, bp.StaleConfidence, playbookStale, "DATA STALE")
	case in.Regimes.VIX == models.Dirty:
		return gated(models.DirectionNeutral, bp.StressConfidence, playbookDirty, "VIX Dirty")
	case in.Event.Level == models.EventHigh || in.Event.WithinWindow:
		return gated(models.DirectionNeutral, bp.EventConfidence, playbookEvent, "Event window")
	}

	conf := bp.Base
	if in.Regimes.VIX == models.Caution {
		conf -= bp.StressCaution
	}
	if in.Regimes.DXY == models.Compression {
		conf -= bp.DXYCompression
	}
	switch in.Fakeout {
	case models.RiskHigh:
		conf -= bp.FakeoutHigh
	case models.RiskModerate:
		conf -= bp.FakeoutModerate
	}
	conf += math.Min(bp.DXYBonusCap, math.Abs(in.DXYImpulse)*bp.DXYBonusScale)
	conf += math.Min(bp.RateBonusCap, math.Abs(in.RateImpulse)*bp.RateBonusScale)
	conf -= math.Min(bp.StressDragCap, math.Max(0, in.StressImpulse)*bp.StressDragScale)

	dxyUp := in.DXYImpulse > bp.DXYImpulse
	dxyDn := in.DXYImpulse < -bp.DXYImpulse
	rateUp := in.Regimes.US10Y == models.Rising || in.RateImpulse > bp.RateImpulse
	rateDn := in.Regimes.US10Y == models.Reversing || in.RateImpulse < -bp.RateImpulse

	var (
		dir     models.Direction
		penalty float64
		reasons []string
	)
	switch {
	case dxyUp && rateUp:
		dir, reasons = models.DirectionShort, []string{"DXY up", "US10Y rising"}
	case dxyDn && rateDn:
		dir, reasons = models.DirectionLong, []string{"DXY down", "US10Y reversing"}
	case in.Instrument.Kind == models.KindInverseDollar:
		switch {
		case dxyUp && !rateDn:
			dir, penalty, reasons = models.DirectionShort, bp.DollarSoloPenalty, []string{"DXY up (solo)"}
		case dxyDn && !rateUp:
			dir, penalty, reasons = models.DirectionLong, bp.DollarSoloPenalty, []string{"DXY down (solo)"}
		default:
			dir, penalty, reasons = models.DirectionNeutral, bp.NoSignalPenalty, []string{"No clear USD impulse"}
		}
	default:
		switch {
		case rateUp && !dxyDn:
			dir, penalty, reasons = models.DirectionShort, bp.RateSoloPenalty, []string{"US10Y rising (solo)"}
		case rateDn && !dxyUp:
			dir, penalty, reasons = models.DirectionLong, bp.RateSoloPenalty, []string{"US10Y reversing (solo)"}
		default:
			dir, penalty, reasons = models.DirectionNeutral, bp.NoSignalPenalty, []string{"No clear rate/USD impulse"}
		}
	}
	conf = clampFloat(conf-penalty, 0, bp.Max)

	playbook := playbookFilter
	if dir != models.DirectionNeutral {
		playbook = playbookPullback
		if in.Fakeout == models.RiskHigh || in.Fakeout == models.RiskModerate || in.Regimes.DXY == models.Compression {
			playbook = playbookRetest
		}
	}
	if dir == models.DirectionNeutral {
		conf = math.Min(conf, bp.Floor)
	}
	if dir != models.DirectionNeutral && conf < bp.Floor {
		dir = models.DirectionNeutral
		playbook = playbookWeak
		if len(reasons) > 2 {
			reasons = reasons[:2]
		}
		reasons = append(reasons, reasonConfidenceLow)
	}
	if bp.MaxReasons > 0 && len(reasons) > bp.MaxReasons {
		reasons = reasons[:bp.MaxReasons]
	}

	out.Direction = dir
	out.Confidence = int(math.RoundToEven(conf))
	out.Playbook = playbook
	out.Reasons = reasons
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
