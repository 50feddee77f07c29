package execution

import (
	"fmt"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/internal/services/features"
)

// SeriesInput is the already-fetched raw data for one instrument.
type SeriesInput struct {
	Ticker       string
	Bars         []models.Bar
	LastPrice    float64
	HasLastPrice bool
	Fallback     float64
}

// Normalize reduces a price series to a MarketMetric. It never fails: missing
// data yields impulse 0, atr_ratio 1.0 and an unknown bar age, with the cause
// recorded in Defaulted.
func Normalize(instrument string, in SeriesInput, now time.Time, p Policy) models.MarketMetric {
	m := models.MarketMetric{Instrument: instrument, Ticker: in.Ticker, ATRRatio: 1.0}

	if len(in.Bars) == 0 {
		m.Defaulted = append(m.Defaulted, models.DefaultEmptySeries)
	} else {
		var reason models.DefaultReason
		if m.ImpulsePct, reason = features.ImpulsePct(in.Bars); reason != "" {
			m.Defaulted = append(m.Defaulted, reason)
		}
		if m.ATRRatio, reason = features.ATRRatio(in.Bars, p.ATRWindow, p.ATRBaseline); reason != "" {
			m.Defaulted = append(m.Defaulted, reason)
		}
		m.BarAgeMinutes = features.BarAgeMinutes(in.Bars, now)
	}

	switch last, ok := features.LastClose(in.Bars); {
	case in.HasLastPrice:
		m.LastValue = in.LastPrice
	case ok:
		m.LastValue = last
	default:
		m.LastValue = in.Fallback
		m.Defaulted = append(m.Defaulted, models.DefaultPriceFallback)
	}
	return m
}

// AssessDataQuality grades freshness from the worst known bar age. Unknown
// ages are ignored; with none known the result is UNKNOWN.
func AssessDataQuality(ages []*float64, staleAfter float64) (models.DataQuality, string) {
	worst, known := 0.0, false
	for _, a := range ages {
		if a == nil {
			continue
		}
		if !known || *a > worst {
			worst = *a
		}
		known = true
	}
	if !known {
		return models.QualityUnknown, "Data freshness could not be verified (fallback)."
	}
	if worst > staleAfter {
		return models.QualityStale, fmt.Sprintf("Data possibly outdated: last bar ~%dm ago.", int(worst))
	}
	return models.QualityLive, fmt.Sprintf("Recent data: last bar ~%dm ago.", int(worst))
}
