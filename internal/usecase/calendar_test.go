package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/internal/repository"
	"MacroGate/pkg/cache"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalendarUseCase(t *testing.T) (*CalendarUseCase, *repository.CalendarStore) {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mc.Close() })
	store := repository.NewCalendarStore()
	return NewCalendarUseCase(store, repository.NewPresetStore(mc), ny, &fakeClock{t: t0}, nil), store
}

func TestCalendarReplaceLocalizesNaiveTimes(t *testing.T) {
	ctx := context.Background()
	uc, _ := newCalendarUseCase(t)

	n, err := uc.Replace(ctx, []models.CalendarEventInput{
		{Time: "2024-03-05 10:30", Title: "ISM", Impact: "3"},
		{Time: "2024-03-05T13:30:00Z", Title: "CPI", Impact: "High"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "CPI", events[0].Title)
	assert.True(t, events[1].Time.Equal(time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)))
	assert.Equal(t, models.ImpactHigh, events[1].Impact)

	_, err = uc.Replace(ctx, []models.CalendarEventInput{{Time: "tomorrow", Title: "x"}})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	events, _ = uc.List(ctx)
	assert.Len(t, events, 2)
}

func TestCalendarImportCSVAndManual(t *testing.T) {
	ctx := context.Background()
	uc, store := newCalendarUseCase(t)

	rep, err := uc.ImportCSV(ctx, strings.NewReader("Event,Impact,datetime_ny\nCPI,High,2024-03-05 08:30\nBad,Low,not-a-time\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Accepted)
	assert.Equal(t, 1, rep.Dropped)

	rep = uc.AddManual(ctx, "14:00,high,FOMC minutes\ngarbage")
	assert.Equal(t, 1, rep.Accepted)
	events, _ := store.LoadCalendar(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, "FOMC minutes", events[1].Title)
	assert.Equal(t, 14, events[1].Time.Hour())

	uc.Clear(ctx)
	events, _ = store.LoadCalendar(ctx)
	assert.Empty(t, events)
}

func TestCalendarPresets(t *testing.T) {
	ctx := context.Background()
	uc, store := newCalendarUseCase(t)
	store.Replace([]models.ScheduledEvent{{Time: t0, Title: "NFP", Impact: models.ImpactHigh}})

	n, err := uc.SavePreset(ctx, "nfp")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	uc.Clear(ctx)
	require.NoError(t, uc.RenamePreset(ctx, "nfp", "jobs"))
	n, err = uc.LoadPreset(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, _ := store.LoadCalendar(ctx)
	require.Len(t, events, 1)
	assert.True(t, events[0].Time.Equal(t0))

	names, err := uc.ListPresets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs"}, names)

	require.NoError(t, uc.DeletePreset(ctx, "jobs"))
	_, err = uc.LoadPreset(ctx, "jobs")
	assert.ErrorIs(t, err, domrepo.ErrPresetNotFound)
}

func TestCalendarFeedHandler(t *testing.T) {
	ctx := context.Background()
	uc, store := newCalendarUseCase(t)
	metrics := newFakeMetrics()
	h := NewCalendarFeedHandler("macrogate.calendar", uc, store, metrics, nil)
	assert.Equal(t, "macrogate.calendar", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"replace":true,"events":[{"time":"2024-03-05 08:30","title":"CPI","impact":"high"}]}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"events":[{"time":"2024-03-05 10:00","title":"ISM"}]}`)))
	events, _ := store.LoadCalendar(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, models.ImpactMedium, events[1].Impact)

	var perm *backoff.PermanentError
	err := h.Handle(ctx, []byte(`{not json`))
	assert.True(t, errors.As(err, &perm))
	err = h.Handle(ctx, []byte(`{"events":[{"time":"2024-03-05 10:00"}]}`))
	assert.True(t, errors.As(err, &perm))
	assert.Equal(t, 1, metrics.errors["calendar_feed_unmarshal"])
	assert.Equal(t, 1, metrics.errors["calendar_feed_validate"])

	events, _ = store.LoadCalendar(ctx)
	assert.Len(t, events, 2)
}
