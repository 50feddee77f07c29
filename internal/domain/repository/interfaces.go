package repository

import (
	"context"
	"errors"
	"io"
	"time"

	"MacroGate/internal/domain/models"
)

var (
	ErrNoSeries       = errors.New("no series data")
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetExists   = errors.New("preset already exists")
)

// SeriesSource fetches bars and the live last price for a ticker.
type SeriesSource interface {
	FetchSeries(ctx context.Context, ticker string) ([]models.Bar, error)
	FetchLastPrice(ctx context.Context, ticker string) (float64, error)
}

type CalendarSource interface {
	LoadCalendar(ctx context.Context) ([]models.ScheduledEvent, error)
}

// CalendarStore is the mutable calendar owned by the service. Version
// increases on every change so callers can key memoized results on it.
type CalendarStore interface {
	CalendarSource
	Replace(events []models.ScheduledEvent)
	Add(events ...models.ScheduledEvent)
	Clear()
	Version() uint64
}

// AuditLog is append-only; the engine never reads it back.
type AuditLog interface {
	RecordSnapshot(ctx context.Context, rec models.SnapshotRecord) error
}

// AuditReader serves the recent rows kept in memory.
type AuditReader interface {
	Recent(limit int) []models.SnapshotRecord
	Len() int
	ExportCSV(w io.Writer) error
	Clear()
}

// PresetStore keeps named calendars.
type PresetStore interface {
	List(ctx context.Context) ([]string, error)
	Save(ctx context.Context, name string, events []models.ScheduledEvent) error
	Load(ctx context.Context, name string) ([]models.ScheduledEvent, error)
	Delete(ctx context.Context, name string) error
	Rename(ctx context.Context, from, to string) error
}

// EvaluationPublisher pushes evaluations to live subscribers.
type EvaluationPublisher interface {
	Broadcast(ev models.Evaluation)
}

type Metrics interface {
	RecordEvaluation(instrument, verdict string, score int)
	RecordBias(instrument, direction string, confidence int)
	RecordDriver(name string, value float64)
	RecordSnapshot(backend string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
