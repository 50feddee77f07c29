package models

// Requests for the execution HTTP endpoints.

type EvaluationRequest struct {
	Instrument string `query:"instrument" json:"instrument" default:"EURUSD" validate:"required,alphanum,max=16"`
	Pressure   string `query:"pressure" json:"pressure" default:"Low" validate:"oneof=Low Moderate High"`
	Frequency  string `query:"frequency" json:"frequency" default:"Normal" validate:"oneof=Normal Elevated"`
	At         string `query:"at" json:"at"`
}

// Narrative converts the request fields into the engine's narrative input.
func (r *EvaluationRequest) Narrative() Narrative {
	return Narrative{Pressure: NarrativePressure(r.Pressure), Frequency: HeadlineFrequency(r.Frequency)}
}

type CalendarEventInput struct {
	Time   string `json:"time" validate:"required"`
	Title  string `json:"title" validate:"required,max=200"`
	Impact string `json:"impact" default:"medium"`
}

type CalendarReplaceRequest struct {
	Events []CalendarEventInput `json:"events" validate:"dive"`
}

type ManualEventsRequest struct {
	Lines string `json:"lines" validate:"required"`
}

type AuditListRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=2000"`
}

type SnapshotRequest struct {
	Instrument string `query:"instrument" json:"instrument" default:"EURUSD" validate:"required,alphanum,max=16"`
}

type PresetRequest struct {
	Name string `param:"name" validate:"required,max=64"`
}

type PresetRenameRequest struct {
	Name string `param:"name" validate:"required,max=64"`
	To   string `json:"to" validate:"required,max=64,nefield=Name"`
}
