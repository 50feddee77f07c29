package execution

import (
	"time"

	"MacroGate/internal/domain/models"
)

// SessionTable maps local minute-of-day to a session phase.
type SessionTable struct {
	ranges   []sessionRange
	offHours models.SessionPhase
	loc      *time.Location
	windows  []SessionWindow
}

// NewSessionTable compiles windows; overlapping or inverted ranges are rejected.
func NewSessionTable(windows []SessionWindow, offHours string, loc *time.Location) (*SessionTable, error) {
	ranges, err := compileSessions(windows)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SessionTable{
		ranges:   ranges,
		offHours: models.SessionPhase(offHours),
		loc:      loc,
		windows:  append([]SessionWindow(nil), windows...),
	}, nil
}

// PhaseAt returns the phase covering now in the table's timezone.
func (t *SessionTable) PhaseAt(now time.Time) models.SessionPhase {
	local := now.In(t.loc)
	minute := local.Hour()*60 + local.Minute()
	for _, r := range t.ranges {
		if minute >= r.start && minute <= r.end {
			return models.SessionPhase(r.name)
		}
	}
	return t.offHours
}

// Windows returns a copy of the configured table.
func (t *SessionTable) Windows() []SessionWindow {
	return append([]SessionWindow(nil), t.windows...)
}

func (t *SessionTable) Location() *time.Location { return t.loc }
