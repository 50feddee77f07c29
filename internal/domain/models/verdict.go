package models

import "time"

type VerdictLabel string

const (
	VerdictAvoid   VerdictLabel = "AVOID"
	VerdictCaution VerdictLabel = "CAUTION"
	VerdictProceed VerdictLabel = "PROCEED"
)

// Rank orders labels from most to least restrictive.
func (l VerdictLabel) Rank() int {
	switch l {
	case VerdictAvoid:
		return 0
	case VerdictCaution:
		return 1
	default:
		return 2
	}
}

type Grade string

const (
	GradeHigh       Grade = "High"
	GradeMedium     Grade = "Medium"
	GradeLow        Grade = "Low"
	GradeGood       Grade = "Good"
	GradeAcceptable Grade = "Acceptable"
	GradePoor       Grade = "Poor"
)

// ExecutionVerdict is the top-level output of one cycle.
type ExecutionVerdict struct {
	Score    int          `json:"score"`
	Label    VerdictLabel `json:"label"`
	Message  string       `json:"message"`
	Clarity  Grade        `json:"clarity"`
	Whipsaw  Grade        `json:"whipsaw"`
	Breakout Grade        `json:"breakout"`
	Gating   []string     `json:"gating,omitempty"`
}

type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
	DirectionWait    Direction = "WAIT"
)

// DirectionalBias is only meaningful inside the active session window.
type DirectionalBias struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Confidence int       `json:"confidence"`
	Playbook   string    `json:"playbook"`
	Reasons    []string  `json:"reasons"`
}

type Switch string

const (
	On  Switch = "ON"
	Off Switch = "OFF"
)

// Flags are quick read-outs shown next to the verdict.
type Flags struct {
	FirstImpulseRisk Switch    `json:"first_impulse_risk"`
	ChopRisk         RiskLevel `json:"chop_risk"`
	EventWindow      bool      `json:"event_window"`
	HeadlineSpike    Switch    `json:"headline_spike"`
}

// InstrumentGuidance is the per-instrument execution suggestion.
type InstrumentGuidance struct {
	Instrument string           `json:"instrument"`
	ATRRatio   float64          `json:"atr_ratio"`
	VolState   VolatilityRegime `json:"vol_state"`
	ImpulsePct float64          `json:"impulse_pct"`
	LowSignal  bool             `json:"low_signal"`
	Distortion Distortion       `json:"distortion"`
	Action     string           `json:"action"`
	Avoid      string           `json:"avoid"`
	Play       string           `json:"play"`
	Indicators []Indicator      `json:"indicators"`
}

// Indicator is a named state with a short note, e.g. gold alignment.
type Indicator struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Note  string `json:"note"`
}

// ActionPlan translates the verdict into concrete steps.
type ActionPlan struct {
	Tag    string   `json:"tag"`
	Action string   `json:"action"`
	Plan   []string `json:"plan"`
	Rules  []string `json:"rules"`
}

// Evaluation is the full, deterministic result of one cycle.
type Evaluation struct {
	Timestamp    time.Time           `json:"timestamp"`
	Instrument   string              `json:"instrument"`
	SessionPhase SessionPhase        `json:"session_phase"`
	DataQuality  DataQuality         `json:"data_quality"`
	QualityNote  string              `json:"quality_note"`
	Narrative    Narrative           `json:"narrative"`
	Drivers      Drivers             `json:"drivers"`
	Regimes      DriverRegimes       `json:"regimes"`
	Metrics      []MarketMetric      `json:"metrics"`
	States       []RegimeState       `json:"states"`
	Event        EventRiskAssessment `json:"event"`
	Fakeout      RiskLevel           `json:"fakeout"`
	Distortion   Distortion          `json:"distortion"`
	Verdict      ExecutionVerdict    `json:"verdict"`
	Bias         DirectionalBias     `json:"bias"`
	Flags        Flags               `json:"flags"`
	Guidance     *InstrumentGuidance `json:"guidance,omitempty"`
	Plan         ActionPlan          `json:"plan"`
}
