package models

import "time"

// Bar is one OHLC record, ascending by Time within a series.
type Bar struct {
	Time  time.Time `json:"t"`
	Open  float64   `json:"o"`
	High  float64   `json:"h"`
	Low   float64   `json:"l"`
	Close float64   `json:"c"`
}

// DefaultReason tags a metric field that fell back to its neutral value.
type DefaultReason string

const (
	DefaultEmptySeries     DefaultReason = "empty_series"
	DefaultShortSeries     DefaultReason = "short_series"
	DefaultZeroPrevious    DefaultReason = "zero_previous_close"
	DefaultInsufficientATR DefaultReason = "insufficient_atr"
	DefaultZeroBaseline    DefaultReason = "zero_baseline"
	DefaultPriceFallback   DefaultReason = "price_unavailable"
)

// MarketMetric is the normalized view of one instrument for one evaluation cycle.
type MarketMetric struct {
	Instrument    string          `json:"instrument"`
	Ticker        string          `json:"ticker,omitempty"`
	LastValue     float64         `json:"last_value"`
	ImpulsePct    float64         `json:"impulse_pct"`
	ATRRatio      float64         `json:"atr_ratio"`
	BarAgeMinutes *float64        `json:"bar_age_minutes"` // nil when unknown
	Defaulted     []DefaultReason `json:"defaulted,omitempty"`
}

// IsDefaulted reports whether any field was filled with a neutral default.
func (m MarketMetric) IsDefaulted() bool { return len(m.Defaulted) > 0 }

// HasDefault reports whether reason r was recorded.
func (m MarketMetric) HasDefault(r DefaultReason) bool {
	for _, d := range m.Defaulted {
		if d == r {
			return true
		}
	}
	return false
}

// InstrumentKind selects the directional sign convention for an instrument.
type InstrumentKind string

const (
	// KindInverseDollar instruments move against the dollar index (EURUSD).
	KindInverseDollar InstrumentKind = "inverse_dollar"
	// KindRateLed instruments follow the long-rate proxy first (XAUUSD).
	KindRateLed InstrumentKind = "rate_led"
)

// InstrumentSpec describes a tradable instrument or a reference driver.
type InstrumentSpec struct {
	ID            string         `json:"id" yaml:"id" validate:"required,alphanum"`
	Kind          InstrumentKind `json:"kind,omitempty" yaml:"kind" validate:"omitempty,oneof=inverse_dollar rate_led"`
	Tickers       []string       `json:"tickers" yaml:"tickers" validate:"required,min=1,dive,required"`
	FallbackPrice float64        `json:"fallback_price" yaml:"fallback_price" validate:"gte=0"`
}

// Drivers groups the three reference metrics every cycle needs.
type Drivers struct {
	DXY   MarketMetric `json:"dxy"`
	US10Y MarketMetric `json:"us10y"`
	VIX   MarketMetric `json:"vix"`
}
