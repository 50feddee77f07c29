package execution

import (
	"fmt"
	"math"
	"sort"
	"time"

	"MacroGate/internal/domain/models"
	"MacroGate/pkg/util"
)

// HeadlineSpike is ON when headlines are elevated or pressure is above Low.
func HeadlineSpike(n models.Narrative) bool {
	return n.Frequency == models.FrequencyElevated ||
		n.Pressure == models.PressureModerate || n.Pressure == models.PressureHigh
}

// AssessCalendar evaluates now against the events of its local day. The
// caller's slice is not modified.
func AssessCalendar(now time.Time, events []models.ScheduledEvent, w EventWindows) models.EventRiskAssessment {
	out := models.EventRiskAssessment{
		Level:      models.EventNone,
		NextWindow: models.NoNextEvent,
		NextIn:     models.NoNextEvent,
		Mode:       models.ModeCalendar,
	}
	if len(events) == 0 {
		out.Note = "No calendar loaded."
		return out
	}

	start := util.StartOfDay(now)
	end := start.Add(24 * time.Hour)
	day := make([]models.NearEvent, 0, len(events))
	for _, ev := range events {
		t := ev.Time.In(now.Location())
		if t.Before(start) || !t.Before(end) {
			continue
		}
		ev.Time = t
		day = append(day, models.NearEvent{ScheduledEvent: ev, MinutesTo: t.Sub(now).Minutes()})
	}
	if len(day) == 0 {
		out.Note = "Calendar loaded (0 events today)."
		return out
	}

	out.Note = fmt.Sprintf("Calendar windows by impact (local time). HIGH=±%gm (high) / ±%gm (medium). MODERATE=±%gm (high) / ±%gm (medium).",
		w.HighImmediate, w.MediumImmediate, w.HighNear, w.MediumNear)

	switch {
	case anyWithin(day, w.HighImmediate, w.MediumImmediate):
		out.Level, out.WithinWindow = models.EventHigh, true
	case anyWithin(day, w.HighNear, w.MediumNear):
		out.Level, out.WithinWindow = models.EventModerate, true
	}

	var next *models.NearEvent
	for i := range day {
		if day[i].MinutesTo < 0 {
			continue
		}
		if next == nil || day[i].MinutesTo < next.MinutesTo {
			next = &day[i]
		}
	}
	if next != nil {
		t := next.Time
		mins := next.MinutesTo
		out.NextEventTime = &t
		out.MinutesToNext = &mins
		out.NextWindow = t.Format("15:04")
		out.NextIn = fmt.Sprintf("%dm", int(mins))
	}

	near := append([]models.NearEvent(nil), day...)
	sort.SliceStable(near, func(i, j int) bool {
		return math.Abs(near[i].MinutesTo) < math.Abs(near[j].MinutesTo)
	})
	limit := w.NearLimit
	if limit <= 0 || limit > len(near) {
		limit = len(near)
	}
	out.Near = near[:limit]
	return out
}

func anyWithin(day []models.NearEvent, high, medium float64) bool {
	for _, ev := range day {
		abs := math.Abs(ev.MinutesTo)
		switch ev.Impact {
		case models.ImpactHigh:
			if abs <= high {
				return true
			}
		case models.ImpactMedium:
			if abs <= medium {
				return true
			}
		}
	}
	return false
}

// AssessProxy scores event risk from regimes and narrative when no calendar
// is loaded.
func AssessProxy(stress models.StressRegime, pressure models.NarrativePressure, spike bool, pp ProxyPolicy) models.EventRiskAssessment {
	score := 0
	switch stress {
	case models.Dirty:
		score += pp.DirtyPoints
	case models.Caution:
		score += pp.CautionPoints
	}
	switch pressure {
	case models.PressureHigh:
		score += pp.HighPoints
	case models.PressureModerate:
		score += pp.ModeratePoints
	}
	if spike {
		score += pp.SpikePoints
	}

	out := models.EventRiskAssessment{
		Level:      models.EventNone,
		NextWindow: models.NoNextEvent,
		NextIn:     models.NoNextEvent,
		Mode:       models.ModeProxy,
		Note:       "Proxy: VIX + narrative + headline spike (no calendar).",
	}
	switch {
	case score >= pp.HighScore:
		out.Level, out.NextIn = models.EventHigh, pp.HighNextIn
	case score >= pp.ModerateScore:
		out.Level, out.NextIn = models.EventModerate, pp.ModerateNextIn
	}
	out.WithinWindow = out.Level != models.EventNone
	return out
}

// Assess uses the calendar when one is loaded and the proxy otherwise.
func Assess(now time.Time, calendar []models.ScheduledEvent, stress models.StressRegime, n models.Narrative, p Policy) models.EventRiskAssessment {
	if len(calendar) == 0 {
		return AssessProxy(stress, n.Pressure, HeadlineSpike(n), p.Proxy)
	}
	return AssessCalendar(now, calendar, p.Events)
}
