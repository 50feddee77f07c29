package models

type VolatilityRegime string

const (
	Compression VolatilityRegime = "Compression"
	Balanced    VolatilityRegime = "Balanced"
	Expansion   VolatilityRegime = "Expansion"
)

type RateRegime string

const (
	Rising    RateRegime = "Rising"
	Stable    RateRegime = "Stable"
	Reversing RateRegime = "Reversing"
)

type StressRegime string

const (
	Clean   StressRegime = "Clean"
	Caution StressRegime = "Caution"
	Dirty   StressRegime = "Dirty"
)

// RegimeState is the classification of one metric under every regime table.
type RegimeState struct {
	Instrument string           `json:"instrument"`
	Volatility VolatilityRegime `json:"volatility"`
	Rate       RateRegime       `json:"rate"`
	Stress     StressRegime     `json:"stress,omitempty"`
}

// DriverRegimes keeps the role-relevant regime of each reference driver.
type DriverRegimes struct {
	DXY   VolatilityRegime `json:"dxy_state"`
	US10Y RateRegime       `json:"us10y_state"`
	VIX   StressRegime     `json:"vix_state"`
}

type DataQuality string

const (
	QualityLive    DataQuality = "LIVE"
	QualityStale   DataQuality = "STALE"
	QualityUnknown DataQuality = "UNKNOWN"
)

// SessionPhase is a label from the configured session table.
type SessionPhase string

// NarrativePressure is the caller-supplied headline pressure tier.
type NarrativePressure string

const (
	PressureLow      NarrativePressure = "Low"
	PressureModerate NarrativePressure = "Moderate"
	PressureHigh     NarrativePressure = "High"
)

type HeadlineFrequency string

const (
	FrequencyNormal   HeadlineFrequency = "Normal"
	FrequencyElevated HeadlineFrequency = "Elevated"
)

// Narrative is the news context passed into an evaluation.
type Narrative struct {
	Pressure  NarrativePressure `json:"pressure"`
	Frequency HeadlineFrequency `json:"frequency"`
	Tone      string            `json:"tone,omitempty"`
}

// RiskLevel is used for fakeout risk and derived chop risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// Distortion is the coarse overlay used by instrument guidance.
type Distortion string

const (
	DistortionLow      Distortion = "LOW"
	DistortionModerate Distortion = "MODERATE"
	DistortionHigh     Distortion = "HIGH"
)
