package models

import "time"

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// ScheduledEvent is one row of the externally supplied calendar.
type ScheduledEvent struct {
	Time   time.Time `json:"time"`
	Title  string    `json:"title"`
	Impact Impact    `json:"impact"`
}

type EventLevel string

const (
	EventNone     EventLevel = "NONE"
	EventModerate EventLevel = "MODERATE"
	EventHigh     EventLevel = "HIGH"
)

type EventMode string

const (
	ModeCalendar EventMode = "CALENDAR"
	ModeProxy    EventMode = "PROXY"
)

// NoNextEvent is shown when no future event exists today.
const NoNextEvent = "—"

// NearEvent is a calendar entry annotated with signed minutes from now.
type NearEvent struct {
	ScheduledEvent
	MinutesTo float64 `json:"minutes_to"`
}

// EventRiskAssessment is computed fresh for every evaluation.
type EventRiskAssessment struct {
	Level         EventLevel  `json:"level"`
	WithinWindow  bool        `json:"within_window"`
	NextEventTime *time.Time  `json:"next_event_time,omitempty"`
	NextWindow    string      `json:"next_window"`
	MinutesToNext *float64    `json:"minutes_to_next,omitempty"`
	NextIn        string      `json:"next_in"`
	Near          []NearEvent `json:"near,omitempty"`
	Mode          EventMode   `json:"mode"`
	Note          string      `json:"note"`
}
