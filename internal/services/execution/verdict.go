package execution

import (
	"fmt"

	"MacroGate/internal/domain/models"
)

// ScoreInputs are the conditions that carry score penalties.
type ScoreInputs struct {
	Stress      models.StressRegime
	Event       models.EventLevel
	Fakeout     models.RiskLevel
	DXY         models.VolatilityRegime
	OffHours    bool
	DataQuality models.DataQuality
}

// Score sums the independent penalties from 100 and clamps to [0,100].
func Score(in ScoreInputs, pen Penalties) int {
	score := 100
	switch in.Stress {
	case models.Dirty:
		score -= pen.StressDirty
	case models.Caution:
		score -= pen.StressCaution
	}
	switch in.Event {
	case models.EventHigh:
		score -= pen.EventHigh
	case models.EventModerate:
		score -= pen.EventModerate
	}
	switch in.Fakeout {
	case models.RiskHigh:
		score -= pen.FakeoutHigh
	case models.RiskModerate:
		score -= pen.FakeoutModerate
	}
	if in.DXY == models.Compression {
		score -= pen.DXYCompression
	}
	if in.OffHours {
		score -= pen.OffHours
	}
	if in.DataQuality == models.QualityStale {
		score -= pen.DataStale
	}
	return clampInt(score, 0, 100)
}

// Grades maps a score to clarity, whipsaw and breakout quality.
func Grades(score int, b ScoreBands) (clarity, whipsaw, breakout models.Grade) {
	switch {
	case score >= b.High:
		return models.GradeHigh, models.GradeLow, models.GradeGood
	case score >= b.Medium:
		return models.GradeMedium, models.GradeMedium, models.GradeAcceptable
	default:
		return models.GradeLow, models.GradeHigh, models.GradePoor
	}
}

const (
	msgAvoid    = "High distortion: avoid the first impulse. Wait for confirmation / retest."
	msgCaution  = "Fakeout probability: reduce size and do not chase breakouts."
	msgProceed  = "Clean conditions: execute only A+ setups with a retest."
	msgOffHours = "Off-hours: thinner liquidity and wider spreads. Avoid the first impulse and execute only on confirmation."
	msgStale    = "Data STALE: bars may lag. Reduce exposure and confirm with your broker before executing."
)

// DecideVerdict is the stateless verdict table.
func DecideVerdict(fakeout models.RiskLevel, event models.EventLevel, stress models.StressRegime) (models.VerdictLabel, string) {
	switch {
	case event == models.EventHigh || stress == models.Dirty:
		return models.VerdictAvoid, msgAvoid
	case fakeout == models.RiskHigh || event == models.EventModerate:
		return models.VerdictCaution, msgCaution
	default:
		return models.VerdictProceed, msgProceed
	}
}

// ApplyGating downgrades PROCEED to CAUTION for off-hours or stale data and
// records each downgrade. Any other label is returned unchanged.
func ApplyGating(v models.ExecutionVerdict, offHours bool, quality models.DataQuality) models.ExecutionVerdict {
	gate := func(reason, msg string) {
		if v.Label != models.VerdictProceed {
			return
		}
		v.Label = models.VerdictCaution
		v.Message = msg
		v.Gating = append(v.Gating, fmt.Sprintf("%s gating: %s → %s", reason, models.VerdictProceed, models.VerdictCaution))
	}
	if offHours {
		gate("Off-hours", msgOffHours)
	}
	if quality == models.QualityStale {
		gate("Data", msgStale)
	}
	return v
}

// BuildVerdict runs score, verdict table and gating in one step.
func BuildVerdict(in ScoreInputs, p Policy) models.ExecutionVerdict {
	label, msg := DecideVerdict(in.Fakeout, in.Event, in.Stress)
	score := Score(in, p.Penalties)
	clarity, whipsaw, breakout := Grades(score, p.Bands)
	v := models.ExecutionVerdict{
		Score:    score,
		Label:    label,
		Message:  msg,
		Clarity:  clarity,
		Whipsaw:  whipsaw,
		Breakout: breakout,
	}
	return ApplyGating(v, in.OffHours, in.DataQuality)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
