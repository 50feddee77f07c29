package models

import (
	"math"
	"strconv"
	"time"
)

// Layouts for audit timestamps and snapshot minute keys.
const (
	SnapshotTimeLayout = "2006-01-02 15:04:05"
	MinuteKeyLayout    = "2006-01-02 15:04"
)

// SnapshotRecord is one append-only audit row.
type SnapshotRecord struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"-"`
	TS           string           `json:"ts"`
	SessionPhase SessionPhase     `json:"session_phase"`
	Verdict      VerdictLabel     `json:"verdict"`
	Fakeout      RiskLevel        `json:"fakeout"`
	EventRisk    EventLevel       `json:"event_risk"`
	NextEvent    string           `json:"next_event"`
	Instrument   string           `json:"instrument"`
	ExecScore    int              `json:"exec_score"`
	Clarity      Grade            `json:"clarity"`
	Whipsaw      Grade            `json:"whipsaw"`
	Breakout     Grade            `json:"breakout"`
	DataQuality  DataQuality      `json:"data_quality"`
	Direction    Direction        `json:"direction"`
	Confidence   int              `json:"confidence"`
	DXY          float64          `json:"dxy"`
	DXYState     VolatilityRegime `json:"dxy_state"`
	US10Y        float64          `json:"us10y"`
	US10YState   RateRegime       `json:"us10y_state"`
	VIX          float64          `json:"vix"`
	VIXState     StressRegime     `json:"vix_state"`
}

// NewSnapshotRecord flattens an evaluation into an audit row.
func NewSnapshotRecord(id string, ev Evaluation) SnapshotRecord {
	return SnapshotRecord{
		ID:           id,
		Timestamp:    ev.Timestamp,
		TS:           ev.Timestamp.Format(SnapshotTimeLayout),
		SessionPhase: ev.SessionPhase,
		Verdict:      ev.Verdict.Label,
		Fakeout:      ev.Fakeout,
		EventRisk:    ev.Event.Level,
		NextEvent:    ev.Event.NextWindow,
		Instrument:   ev.Instrument,
		ExecScore:    ev.Verdict.Score,
		Clarity:      ev.Verdict.Clarity,
		Whipsaw:      ev.Verdict.Whipsaw,
		Breakout:     ev.Verdict.Breakout,
		DataQuality:  ev.DataQuality,
		Direction:    ev.Bias.Direction,
		Confidence:   ev.Bias.Confidence,
		DXY:          round4(ev.Drivers.DXY.LastValue),
		DXYState:     ev.Regimes.DXY,
		US10Y:        round4(ev.Drivers.US10Y.LastValue),
		US10YState:   ev.Regimes.US10Y,
		VIX:          round4(ev.Drivers.VIX.LastValue),
		VIXState:     ev.Regimes.VIX,
	}
}

// CSVHeader lists the export columns in order.
var CSVHeader = []string{
	"id", "ts", "session_phase", "verdict", "fakeout", "event_risk", "next_event",
	"instrument", "exec_score", "clarity", "whipsaw", "breakout", "data_quality",
	"direction", "confidence", "dxy", "dxy_state", "us10y", "us10y_state", "vix", "vix_state",
}

// CSVRow renders the record in CSVHeader order.
func (r SnapshotRecord) CSVRow() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.ID, r.TS, string(r.SessionPhase), string(r.Verdict), string(r.Fakeout),
		string(r.EventRisk), r.NextEvent, r.Instrument, strconv.Itoa(r.ExecScore),
		string(r.Clarity), string(r.Whipsaw), string(r.Breakout), string(r.DataQuality),
		string(r.Direction), strconv.Itoa(r.Confidence),
		f(r.DXY), string(r.DXYState), f(r.US10Y), string(r.US10YState), f(r.VIX), string(r.VIXState),
	}
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
