package execution

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Default regime thresholds.
const (
	DefaultCompressionBelow = 0.85
	DefaultExpansionAbove   = 1.15
	DefaultRisingAbove      = 0.10
	DefaultReversingBelow   = -0.10
	DefaultDirtyLevel       = 22.0
	DefaultDirtyImpulse     = 0.35
	DefaultCautionLevel     = 18.0
	DefaultCautionImpulse   = 0.15
	DefaultStaleAfterMin    = 120.0
	DefaultConfidenceFloor  = 55
	DefaultActivePhase      = "NY AM"
	DefaultOffHoursPhase    = "Off-hours"
	DefaultTimezone         = "America/New_York"
)

// VolatilityBands split atr_ratio into Compression / Balanced / Expansion.
type VolatilityBands struct {
	CompressionBelow float64 `yaml:"compression_below" default:"0.85"`
	ExpansionAbove   float64 `yaml:"expansion_above" default:"1.15"`
}

// RateBands split the rate proxy impulse into Rising / Stable / Reversing.
type RateBands struct {
	RisingAbove    float64 `yaml:"rising_above" default:"0.10"`
	ReversingBelow float64 `yaml:"reversing_below" default:"-0.10"`
}

// StressBands classify the stress proxy by level or impulse.
type StressBands struct {
	DirtyLevel     float64 `yaml:"dirty_level" default:"22"`
	DirtyImpulse   float64 `yaml:"dirty_impulse" default:"0.35"`
	CautionLevel   float64 `yaml:"caution_level" default:"18"`
	CautionImpulse float64 `yaml:"caution_impulse" default:"0.15"`
}

// EventWindows are absolute-minute tolerances per impact tier.
type EventWindows struct {
	HighImmediate   float64 `yaml:"high_immediate" default:"30"`
	MediumImmediate float64 `yaml:"medium_immediate" default:"15"`
	HighNear        float64 `yaml:"high_near" default:"90"`
	MediumNear      float64 `yaml:"medium_near" default:"45"`
	NearLimit       int     `yaml:"near_limit" default:"5"`
}

// ProxyPolicy scores event risk when no calendar is loaded.
type ProxyPolicy struct {
	DirtyPoints    int    `yaml:"dirty_points" default:"2"`
	CautionPoints  int    `yaml:"caution_points" default:"1"`
	HighPoints     int    `yaml:"high_points" default:"2"`
	ModeratePoints int    `yaml:"moderate_points" default:"1"`
	SpikePoints    int    `yaml:"spike_points" default:"1"`
	HighScore      int    `yaml:"high_score" default:"4"`
	ModerateScore  int    `yaml:"moderate_score" default:"2"`
	HighNextIn     string `yaml:"high_next_in" default:"20m"`
	ModerateNextIn string `yaml:"moderate_next_in" default:"45m"`
}

// Penalties are subtracted from 100 to form the execution score.
type Penalties struct {
	StressDirty     int `yaml:"stress_dirty" default:"25"`
	StressCaution   int `yaml:"stress_caution" default:"12"`
	EventHigh       int `yaml:"event_high" default:"25"`
	EventModerate   int `yaml:"event_moderate" default:"12"`
	FakeoutHigh     int `yaml:"fakeout_high" default:"18"`
	FakeoutModerate int `yaml:"fakeout_moderate" default:"8"`
	DXYCompression  int `yaml:"dxy_compression" default:"10"`
	OffHours        int `yaml:"off_hours" default:"12"`
	DataStale       int `yaml:"data_stale" default:"18"`
}

// ScoreBands map the score to clarity / whipsaw / breakout grades.
type ScoreBands struct {
	High   int `yaml:"high" default:"80"`
	Medium int `yaml:"medium" default:"60"`
}

// BiasPolicy holds the directional confidence arithmetic.
type BiasPolicy struct {
	Base              float64 `yaml:"base" default:"55"`
	Floor             float64 `yaml:"floor" default:"55"`
	Max               float64 `yaml:"max" default:"95"`
	StaleConfidence   int     `yaml:"stale_confidence" default:"20"`
	StressConfidence  int     `yaml:"stress_confidence" default:"25"`
	EventConfidence   int     `yaml:"event_confidence" default:"30"`
	StressCaution     float64 `yaml:"stress_caution" default:"8"`
	DXYCompression    float64 `yaml:"dxy_compression" default:"8"`
	FakeoutHigh       float64 `yaml:"fakeout_high" default:"10"`
	FakeoutModerate   float64 `yaml:"fakeout_moderate" default:"5"`
	DXYBonusCap       float64 `yaml:"dxy_bonus_cap" default:"18"`
	DXYBonusScale     float64 `yaml:"dxy_bonus_scale" default:"80"`
	RateBonusCap      float64 `yaml:"rate_bonus_cap" default:"12"`
	RateBonusScale    float64 `yaml:"rate_bonus_scale" default:"60"`
	StressDragCap     float64 `yaml:"stress_drag_cap" default:"10"`
	StressDragScale   float64 `yaml:"stress_drag_scale" default:"30"`
	DXYImpulse        float64 `yaml:"dxy_impulse" default:"0.05"`
	RateImpulse       float64 `yaml:"rate_impulse" default:"0.10"`
	DollarSoloPenalty float64 `yaml:"dollar_solo_penalty" default:"5"`
	RateSoloPenalty   float64 `yaml:"rate_solo_penalty" default:"6"`
	NoSignalPenalty   float64 `yaml:"no_signal_penalty" default:"10"`
	MaxReasons        int     `yaml:"max_reasons" default:"5"`
}

// SessionWindow is an inclusive HH:MM range in the policy timezone.
type SessionWindow struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Policy centralizes every threshold the engine uses. ApplyDefaults fills
// zero fields; config loading seeds defaults first so explicit zeros stay.
type Policy struct {
	Timezone          string          `yaml:"timezone" default:"America/New_York"`
	ATRWindow         int             `yaml:"atr_window" default:"14"`
	ATRBaseline       int             `yaml:"atr_baseline" default:"100"`
	StaleAfterMinutes float64         `yaml:"stale_after_minutes" default:"120"`
	LowSignalImpulse  float64         `yaml:"low_signal_impulse" default:"0.05"`
	Volatility        VolatilityBands `yaml:"volatility"`
	Rate              RateBands       `yaml:"rate"`
	Stress            StressBands     `yaml:"stress"`
	Events            EventWindows    `yaml:"events"`
	Proxy             ProxyPolicy     `yaml:"proxy"`
	Penalties         Penalties       `yaml:"penalties"`
	Bands             ScoreBands      `yaml:"bands"`
	Bias              BiasPolicy      `yaml:"bias"`
	Sessions          []SessionWindow `yaml:"sessions"`
	ActivePhase       string          `yaml:"active_phase" default:"NY AM"`
	OffHoursPhase     string          `yaml:"off_hours_phase" default:"Off-hours"`
	ThinPhases        []string        `yaml:"thin_phases"`
}

// DefaultSessions is the New York session table.
func DefaultSessions() []SessionWindow {
	return []SessionWindow{
		{Name: "Asia", Start: "00:00", End: "06:59"},
		{Name: "London", Start: "07:00", End: "09:29"},
		{Name: "NY AM", Start: "09:30", End: "11:30"},
		{Name: "NY Lunch", Start: "11:31", End: "13:30"},
		{Name: "NY PM", Start: "13:31", End: "16:00"},
	}
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	var p Policy
	_ = p.ApplyDefaults()
	return p
}

// ApplyDefaults fills zero fields and the session table.
func (p *Policy) ApplyDefaults() error {
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("policy defaults: %w", err)
	}
	if len(p.Sessions) == 0 {
		p.Sessions = DefaultSessions()
	}
	if p.ThinPhases == nil {
		p.ThinPhases = []string{"NY Lunch"}
	}
	return nil
}

// ConfigurationError is fatal: the policy cannot be used.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid policy %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func cfgErr(field, format string, a ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// Validate checks threshold ordering and the session table.
func (p Policy) Validate() error {
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return cfgErr("timezone", "unknown location %q", p.Timezone)
	}
	if p.ATRWindow < 1 {
		return cfgErr("atr_window", "must be >= 1, got %d", p.ATRWindow)
	}
	if p.ATRBaseline < 1 {
		return cfgErr("atr_baseline", "must be >= 1, got %d", p.ATRBaseline)
	}
	if p.StaleAfterMinutes <= 0 {
		return cfgErr("stale_after_minutes", "must be positive")
	}
	if p.Volatility.CompressionBelow > p.Volatility.ExpansionAbove {
		return cfgErr("volatility", "compression_below %.4f above expansion_above %.4f", p.Volatility.CompressionBelow, p.Volatility.ExpansionAbove)
	}
	if p.Rate.ReversingBelow > p.Rate.RisingAbove {
		return cfgErr("rate", "reversing_below %.4f above rising_above %.4f", p.Rate.ReversingBelow, p.Rate.RisingAbove)
	}
	if p.Stress.CautionLevel > p.Stress.DirtyLevel || p.Stress.CautionImpulse > p.Stress.DirtyImpulse {
		return cfgErr("stress", "caution thresholds must not exceed dirty thresholds")
	}
	if p.Events.HighImmediate > p.Events.HighNear || p.Events.MediumImmediate > p.Events.MediumNear {
		return cfgErr("events", "immediate windows must not exceed near windows")
	}
	if p.Proxy.ModerateScore > p.Proxy.HighScore {
		return cfgErr("proxy", "moderate_score above high_score")
	}
	if err := p.Penalties.validate(); err != nil {
		return err
	}
	if p.Bands.Medium > p.Bands.High {
		return cfgErr("bands", "medium %d above high %d", p.Bands.Medium, p.Bands.High)
	}
	if p.Bias.Floor > p.Bias.Max || p.Bias.Max > 100 {
		return cfgErr("bias", "floor %.0f / max %.0f out of order", p.Bias.Floor, p.Bias.Max)
	}
	if _, err := compileSessions(p.Sessions); err != nil {
		return err
	}
	if p.ActivePhase == p.OffHoursPhase {
		return cfgErr("active_phase", "cannot equal off_hours_phase")
	}
	found := false
	for _, s := range p.Sessions {
		if s.Name == p.OffHoursPhase {
			return cfgErr("sessions", "%q is reserved for uncovered time", p.OffHoursPhase)
		}
		if s.Name == p.ActivePhase {
			found = true
		}
	}
	if !found {
		return cfgErr("active_phase", "%q not in session table", p.ActivePhase)
	}
	return nil
}

// validate allows zero, which switches a penalty off.
func (pen Penalties) validate() error {
	for name, v := range map[string]int{
		"stress_dirty":     pen.StressDirty,
		"stress_caution":   pen.StressCaution,
		"event_high":       pen.EventHigh,
		"event_moderate":   pen.EventModerate,
		"fakeout_high":     pen.FakeoutHigh,
		"fakeout_moderate": pen.FakeoutModerate,
		"dxy_compression":  pen.DXYCompression,
		"off_hours":        pen.OffHours,
		"data_stale":       pen.DataStale,
	} {
		if v < 0 {
			return cfgErr("penalties."+name, "must be >= 0, got %d", v)
		}
	}
	return nil
}

type sessionRange struct {
	name       string
	start, end int // minute of day, inclusive
}

func compileSessions(ws []SessionWindow) ([]sessionRange, error) {
	if len(ws) == 0 {
		return nil, cfgErr("sessions", "table is empty")
	}
	out := make([]sessionRange, 0, len(ws))
	seen := make(map[string]bool, len(ws))
	for i, w := range ws {
		field := fmt.Sprintf("sessions[%d]", i)
		name := strings.TrimSpace(w.Name)
		if name == "" {
			return nil, cfgErr(field, "name is required")
		}
		if seen[name] {
			return nil, cfgErr(field, "duplicate name %q", name)
		}
		seen[name] = true
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, cfgErr(field, "start: %v", err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, cfgErr(field, "end: %v", err)
		}
		if end < start {
			return nil, cfgErr(field, "%s ends before it starts (%s > %s)", name, w.Start, w.End)
		}
		out = append(out, sessionRange{name: name, start: start, end: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	for i := 1; i < len(out); i++ {
		if out[i].start <= out[i-1].end {
			return nil, cfgErr("sessions", "%s overlaps %s", out[i].name, out[i-1].name)
		}
	}
	return out, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
