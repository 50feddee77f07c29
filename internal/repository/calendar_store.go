package repository

import (
	"context"
	"sort"
	"sync"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
)

// CalendarStore is the in-process calendar shared by the HTTP API, the
// feed consumer and the evaluator.
type CalendarStore struct {
	mu      sync.RWMutex
	events  []models.ScheduledEvent
	version uint64
}

var _ domrepo.CalendarStore = (*CalendarStore)(nil)

func NewCalendarStore() *CalendarStore {
	return &CalendarStore{}
}

// LoadCalendar returns a copy of the events sorted by time.
func (s *CalendarStore) LoadCalendar(_ context.Context) ([]models.ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScheduledEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *CalendarStore) Replace(events []models.ScheduledEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(make([]models.ScheduledEvent, 0, len(events)), events...)
	s.sortLocked()
	s.version++
}

func (s *CalendarStore) Add(events ...models.ScheduledEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	s.sortLocked()
	s.version++
}

func (s *CalendarStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.version++
}

// Version changes on every mutation.
func (s *CalendarStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *CalendarStore) sortLocked() {
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Time.Before(s.events[j].Time)
	})
}
