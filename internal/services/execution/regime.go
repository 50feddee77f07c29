package execution

import "MacroGate/internal/domain/models"

// ClassifyVolatility maps atr_ratio to a volatility regime; band edges are Balanced.
func ClassifyVolatility(atrRatio float64, b VolatilityBands) models.VolatilityRegime {
	switch {
	case atrRatio < b.CompressionBelow:
		return models.Compression
	case atrRatio > b.ExpansionAbove:
		return models.Expansion
	default:
		return models.Balanced
	}
}

// ClassifyRate maps a percent impulse to a rate regime.
func ClassifyRate(impulsePct float64, b RateBands) models.RateRegime {
	switch {
	case impulsePct > b.RisingAbove:
		return models.Rising
	case impulsePct < b.ReversingBelow:
		return models.Reversing
	default:
		return models.Stable
	}
}

// ClassifyStress uses both the absolute level and the impulse of the stress proxy.
func ClassifyStress(level, impulsePct float64, b StressBands) models.StressRegime {
	switch {
	case level >= b.DirtyLevel || impulsePct > b.DirtyImpulse:
		return models.Dirty
	case level >= b.CautionLevel || impulsePct > b.CautionImpulse:
		return models.Caution
	default:
		return models.Clean
	}
}

// Classify applies the volatility and rate tables to one metric. The stress
// table only means something for the stress proxy, so it is applied when
// stressProxy is set and left empty otherwise.
func Classify(m models.MarketMetric, stressProxy bool, p Policy) models.RegimeState {
	st := models.RegimeState{
		Instrument: m.Instrument,
		Volatility: ClassifyVolatility(m.ATRRatio, p.Volatility),
		Rate:       ClassifyRate(m.ImpulsePct, p.Rate),
	}
	if stressProxy {
		st.Stress = ClassifyStress(m.LastValue, m.ImpulsePct, p.Stress)
	}
	return st
}

// ClassifyDrivers keeps the role-relevant regime of each reference driver.
func ClassifyDrivers(d models.Drivers, p Policy) models.DriverRegimes {
	return models.DriverRegimes{
		DXY:   ClassifyVolatility(d.DXY.ATRRatio, p.Volatility),
		US10Y: ClassifyRate(d.US10Y.ImpulsePct, p.Rate),
		VIX:   ClassifyStress(d.VIX.LastValue, d.VIX.ImpulsePct, p.Stress),
	}
}
