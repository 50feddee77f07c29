package execution

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/pkg/util"
)

var (
	ErrNoTitleColumn = errors.New("calendar: no title/event/name column")
	ErrNoTimeColumn  = errors.New("calendar: no datetime_ny/datetime_utc column")
)

// ParseReport counts rows seen and rows dropped while parsing a calendar.
type ParseReport struct {
	Rows     int `json:"rows"`
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// NormalizeImpact maps free-form impact text to a tier. Numeric 3/2/1 codes
// are honoured when numeric is set. Unknown values are medium.
func NormalizeImpact(raw string, numeric bool) models.Impact {
	x := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(x, "high") || (numeric && x == "3"):
		return models.ImpactHigh
	case strings.Contains(x, "med") || (numeric && x == "2"):
		return models.ImpactMedium
	case strings.Contains(x, "low") || (numeric && x == "1"):
		return models.ImpactLow
	default:
		return models.ImpactMedium
	}
}

// ParseCalendarCSV reads events from a CSV with a header row. Column names
// are matched case-insensitively. datetime_ny values without a zone are
// placed in loc; datetime_utc values are read as UTC. Malformed rows and
// rows with an unparseable time are dropped and counted. A read error from
// r ends the parse.
func ParseCalendarCSV(r io.Reader, loc *time.Location) ([]models.ScheduledEvent, ParseReport, error) {
	var rep ParseReport
	if loc == nil {
		loc = time.UTC
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, rep, nil
	}
	if err != nil {
		return nil, rep, fmt.Errorf("calendar header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	pick := func(names ...string) int {
		for _, n := range names {
			if i, ok := cols[n]; ok {
				return i
			}
		}
		return -1
	}

	titleCol := pick("title", "event", "name")
	if titleCol < 0 {
		return nil, rep, ErrNoTitleColumn
	}
	impactCol := pick("impact", "importance")
	timeCol, timeLoc := pick("datetime_ny"), loc
	if timeCol < 0 {
		timeCol, timeLoc = pick("datetime_utc"), time.UTC
	}
	if timeCol < 0 {
		return nil, rep, ErrNoTimeColumn
	}

	var events []models.ScheduledEvent
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, rep, fmt.Errorf("calendar row: %w", err)
			}
			rep.Rows++
			rep.Dropped++
			continue
		}
		rep.Rows++
		field := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		ts, ok := util.ParseTimeIn(field(timeCol), timeLoc)
		if !ok {
			rep.Dropped++
			continue
		}
		events = append(events, models.ScheduledEvent{
			Time:   ts.In(loc),
			Title:  field(titleCol),
			Impact: NormalizeImpact(field(impactCol), true),
		})
	}
	sortEvents(events)
	rep.Accepted = len(events)
	return events, rep, nil
}

// ParseManualEvents reads "HH:MM,impact,title" or "HH:MM,title" lines and
// places them on the local date of now. Bad lines are skipped.
func ParseManualEvents(text string, now time.Time) ([]models.ScheduledEvent, ParseReport) {
	var rep ParseReport
	var events []models.ScheduledEvent
	y, m, d := now.Date()

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		rep.Rows++
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 2 {
			rep.Dropped++
			continue
		}
		impact, title := "medium", parts[1]
		if len(parts) > 2 {
			impact = parts[1]
			title = strings.TrimSpace(strings.Join(parts[2:], ","))
		}
		hh, mm, ok := splitClock(parts[0])
		if !ok {
			rep.Dropped++
			continue
		}
		events = append(events, models.ScheduledEvent{
			Time:   time.Date(y, m, d, hh, mm, 0, 0, now.Location()),
			Title:  title,
			Impact: NormalizeImpact(impact, false),
		})
	}
	sortEvents(events)
	rep.Accepted = len(events)
	return events, rep
}

func splitClock(s string) (int, int, bool) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, false
	}
	mm, err := strconv.Atoi(strings.TrimSpace(m))
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}

func sortEvents(events []models.ScheduledEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
}
