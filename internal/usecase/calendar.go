package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/internal/services/execution"
	applogger "MacroGate/pkg/logger"
	"MacroGate/pkg/util"
)

var ErrInvalidEvent = errors.New("invalid calendar event")

// CalendarUseCase edits the shared calendar and its saved presets.
type CalendarUseCase struct {
	store   domrepo.CalendarStore
	presets domrepo.PresetStore
	loc     *time.Location
	clock   domrepo.Clock
	l       *applogger.Logger
}

func NewCalendarUseCase(store domrepo.CalendarStore, presets domrepo.PresetStore, loc *time.Location, clock domrepo.Clock, l *applogger.Logger) *CalendarUseCase {
	if clock == nil {
		clock = domrepo.SystemClock{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarUseCase{store: store, presets: presets, loc: loc, clock: clock, l: l.Component("calendar")}
}

func (uc *CalendarUseCase) List(ctx context.Context) ([]models.ScheduledEvent, error) {
	return uc.store.LoadCalendar(ctx)
}

// ConvertInputs parses request events. Naive times are read in the engine
// timezone. Any bad row rejects the whole batch.
func (uc *CalendarUseCase) ConvertInputs(in []models.CalendarEventInput) ([]models.ScheduledEvent, error) {
	out := make([]models.ScheduledEvent, 0, len(in))
	for i, e := range in {
		t, ok := util.ParseTimeIn(e.Time, uc.loc)
		if !ok {
			return nil, fmt.Errorf("%w: events[%d].time %q", ErrInvalidEvent, i, e.Time)
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: events[%d].title is empty", ErrInvalidEvent, i)
		}
		out = append(out, models.ScheduledEvent{Time: t, Title: title, Impact: execution.NormalizeImpact(e.Impact, true)})
	}
	return out, nil
}

// Replace swaps the calendar for the given events.
func (uc *CalendarUseCase) Replace(_ context.Context, in []models.CalendarEventInput) (int, error) {
	events, err := uc.ConvertInputs(in)
	if err != nil {
		return 0, err
	}
	uc.store.Replace(events)
	uc.l.Info("calendar replaced", applogger.Int("events", len(events)))
	return len(events), nil
}

// ImportCSV replaces the calendar from a CSV body.
func (uc *CalendarUseCase) ImportCSV(_ context.Context, r io.Reader) (execution.ParseReport, error) {
	events, rep, err := execution.ParseCalendarCSV(r, uc.loc)
	if err != nil {
		return rep, err
	}
	uc.store.Replace(events)
	uc.l.Info("calendar imported",
		applogger.Int("accepted", rep.Accepted),
		applogger.Int("dropped", rep.Dropped))
	return rep, nil
}

// AddManual appends "HH:MM,impact,title" lines dated today.
func (uc *CalendarUseCase) AddManual(_ context.Context, text string) execution.ParseReport {
	events, rep := execution.ParseManualEvents(text, uc.clock.Now().In(uc.loc))
	uc.store.Add(events...)
	return rep
}

func (uc *CalendarUseCase) Clear(_ context.Context) {
	uc.store.Clear()
	uc.l.Info("calendar cleared")
}

func (uc *CalendarUseCase) ListPresets(ctx context.Context) ([]string, error) {
	return uc.presets.List(ctx)
}

// SavePreset stores the current calendar under name.
func (uc *CalendarUseCase) SavePreset(ctx context.Context, name string) (int, error) {
	events, err := uc.store.LoadCalendar(ctx)
	if err != nil {
		return 0, err
	}
	if err := uc.presets.Save(ctx, name, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// LoadPreset replaces the calendar with a saved preset.
func (uc *CalendarUseCase) LoadPreset(ctx context.Context, name string) (int, error) {
	events, err := uc.presets.Load(ctx, name)
	if err != nil {
		return 0, err
	}
	for i := range events {
		events[i].Time = events[i].Time.In(uc.loc)
	}
	uc.store.Replace(events)
	return len(events), nil
}

func (uc *CalendarUseCase) RenamePreset(ctx context.Context, from, to string) error {
	return uc.presets.Rename(ctx, from, to)
}

func (uc *CalendarUseCase) DeletePreset(ctx context.Context, name string) error {
	return uc.presets.Delete(ctx, name)
}
