package execution

import "MacroGate/internal/domain/models"

func pressured(p models.NarrativePressure) bool {
	return p == models.PressureModerate || p == models.PressureHigh
}

// FakeoutRisk estimates false-breakout risk from the dollar volatility
// regime, stress and narrative pressure.
func FakeoutRisk(dxy models.VolatilityRegime, stress models.StressRegime, pressure models.NarrativePressure) models.RiskLevel {
	if dxy == models.Compression && (stress == models.Caution || stress == models.Dirty) && pressured(pressure) {
		return models.RiskHigh
	}
	if dxy == models.Expansion && stress == models.Clean && pressure == models.PressureLow {
		return models.RiskLow
	}
	return models.RiskModerate
}

// DistortionOverlay is the coarser signal used by instrument guidance.
func DistortionOverlay(level models.EventLevel, pressure models.NarrativePressure, stress models.StressRegime) models.Distortion {
	switch {
	case stress == models.Dirty || level == models.EventHigh:
		return models.DistortionHigh
	case level == models.EventModerate && pressured(pressure):
		return models.DistortionHigh
	case level == models.EventModerate || pressure == models.PressureModerate || stress == models.Caution:
		return models.DistortionModerate
	default:
		return models.DistortionLow
	}
}
