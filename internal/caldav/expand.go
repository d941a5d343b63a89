package caldav

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"agendabot/internal/models"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

const dateLayout = "2006-01-02"

// expandCalendar turns the VEVENTs of one calendar object into the
// occurrences overlapping [start, end). Recurring masters are expanded with
// their RRULE/RDATE/EXDATE set; instances overridden by a RECURRENCE-ID
// component are replaced by that component.
func expandCalendar(logger *slog.Logger, cal *ical.Calendar, start, end time.Time, loc *time.Location, source string) []models.Event {
	var (
		out       []models.Event
		masters   []ical.Event
		overrides = make(map[string]map[int64]bool)
	)

	for _, ev := range cal.Events() {
		uid, _ := ev.Props.Text(ical.PropUID)
		ridProp := ev.Props.Get(ical.PropRecurrenceID)
		if ridProp == nil {
			masters = append(masters, ev)
			continue
		}
		if rid, err := ridProp.DateTime(loc); err == nil {
			if overrides[uid] == nil {
				overrides[uid] = make(map[int64]bool)
			}
			overrides[uid][rid.Unix()] = true
		}
		out = append(out, singleOccurrence(logger, ev, uid, start, end, loc, source)...)
	}

	for _, ev := range masters {
		uid, _ := ev.Props.Text(ical.PropUID)
		set, err := ev.RecurrenceSet(loc)
		if err != nil {
			logger.Warn("Invalid recurrence rule, treating event as single", "uid", uid, "error", err)
			set = nil
		}
		if set == nil {
			out = append(out, singleOccurrence(logger, ev, uid, start, end, loc, source)...)
			continue
		}

		dur, allDay := eventSpan(ev, loc)
		summary, _ := ev.Props.Text(ical.PropSummary)
		location, _ := ev.Props.Text(ical.PropLocation)
		for _, occ := range occurrences(set, dur, start, end) {
			if overrides[uid][occ.Unix()] {
				continue
			}
			out = append(out, models.Event{
				ID:       fmt.Sprintf("%s@%d", uid, occ.Unix()),
				Summary:  summary,
				Start:    startOf(occ, allDay, loc),
				Location: location,
				Source:   source,
			})
		}
	}
	return out
}

// occurrences returns the instances of set that overlap [start, end).
func occurrences(set *rrule.Set, dur time.Duration, start, end time.Time) []time.Time {
	var out []time.Time
	for _, occ := range set.Between(start.Add(-dur), end, true) {
		if overlaps(occ, dur, start, end) {
			out = append(out, occ)
		}
	}
	return out
}

func singleOccurrence(logger *slog.Logger, ev ical.Event, uid string, start, end time.Time, loc *time.Location, source string) []models.Event {
	summary, _ := ev.Props.Text(ical.PropSummary)
	location, _ := ev.Props.Text(ical.PropLocation)
	out := models.Event{ID: uid, Summary: summary, Location: location, Source: source}

	evStart, err := ev.DateTimeStart(loc)
	if err != nil {
		// The server already filtered by time range; keep the raw value.
		logger.Warn("Unparseable DTSTART, keeping raw value", "uid", uid, "error", err)
		if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil {
			out.Start = models.EventStart{DateTime: prop.Value}
		}
		return []models.Event{out}
	}

	dur, allDay := eventSpan(ev, loc)
	if !overlaps(evStart, dur, start, end) {
		return nil
	}
	out.Start = startOf(evStart, allDay, loc)
	return []models.Event{out}
}

// eventSpan returns the event duration and whether it is an all-day event.
// All-day events without an end last one day.
func eventSpan(ev ical.Event, loc *time.Location) (time.Duration, bool) {
	allDay := false
	if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil {
		allDay = prop.ValueType() == ical.ValueDate
	}

	var dur time.Duration
	evStart, serr := ev.DateTimeStart(loc)
	evEnd, eerr := ev.DateTimeEnd(loc)
	if serr == nil && eerr == nil && evEnd.After(evStart) {
		dur = evEnd.Sub(evStart)
	}
	if dur == 0 && allDay {
		dur = 24 * time.Hour
	}
	return dur, allDay
}

func overlaps(occ time.Time, dur time.Duration, start, end time.Time) bool {
	if !occ.Before(end) {
		return false
	}
	if dur == 0 {
		return !occ.Before(start)
	}
	return occ.Add(dur).After(start)
}

func startOf(t time.Time, allDay bool, loc *time.Location) models.EventStart {
	if allDay {
		return models.EventStart{Date: t.Format(dateLayout)}
	}
	return models.EventStart{DateTime: t.In(loc).Format(time.RFC3339)}
}

// sortEvents orders events by start; all-day events sort at local midnight
// and unparseable starts sort last.
func sortEvents(events []models.Event, loc *time.Location) {
	key := func(ev models.Event) (time.Time, bool) {
		if ev.Start.DateTime != "" {
			t, err := time.Parse(time.RFC3339, ev.Start.DateTime)
			return t, err == nil
		}
		t, err := time.ParseInLocation(dateLayout, ev.Start.Date, loc)
		return t, err == nil
	}
	sort.SliceStable(events, func(i, j int) bool {
		ti, oki := key(events[i])
		tj, okj := key(events[j])
		if oki != okj {
			return oki
		}
		return ti.Before(tj)
	})
}
