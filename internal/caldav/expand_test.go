package caldav

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"agendabot/internal/agenda"
	"agendabot/internal/models"

	"github.com/emersion/go-ical"
)

func decodeCalendar(t *testing.T, body string) *ical.Calendar {
	t.Helper()
	body = strings.ReplaceAll(strings.TrimSpace(body), "\n", "\r\n") + "\r\n"
	cal, err := ical.NewDecoder(strings.NewReader(body)).Decode()
	if err != nil {
		t.Fatalf("decode calendar: %v", err)
	}
	return cal
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpandCalendar_SingleAndAllDay(t *testing.T) {
	t.Parallel()

	cal := decodeCalendar(t, `
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:timed
DTSTAMP:20240201T000000Z
SUMMARY:Standup
DTSTART:20240301T020000Z
DTEND:20240301T023000Z
END:VEVENT
BEGIN:VEVENT
UID:holiday
DTSTAMP:20240201T000000Z
SUMMARY:Holiday
DTSTART;VALUE=DATE:20240301
END:VEVENT
BEGIN:VEVENT
UID:yesterday
DTSTAMP:20240201T000000Z
SUMMARY:Yesterday
DTSTART;VALUE=DATE:20240229
END:VEVENT
END:VCALENDAR`)

	loc := time.FixedZone("ICT", 7*3600)
	start, end := agenda.DayBounds(time.Date(2024, 3, 1, 5, 0, 0, 0, loc), loc)
	events := expandCalendar(discardLogger(), cal, start, end, loc, "caldav-test")
	sortEvents(events, loc)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[0].Summary != "Holiday" || events[0].Start.Date != "2024-03-01" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Summary != "Standup" || events[1].Start.DateTime != "2024-03-01T09:00:00+07:00" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestExpandCalendar_RecurringWithOverride(t *testing.T) {
	t.Parallel()

	cal := decodeCalendar(t, `
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:daily
DTSTAMP:20240201T000000Z
SUMMARY:Daily sync
DTSTART:20240226T090000Z
DTEND:20240226T091500Z
RRULE:FREQ=DAILY;COUNT=10
END:VEVENT
BEGIN:VEVENT
UID:weekly
DTSTAMP:20240201T000000Z
SUMMARY:Weekly review
DTSTART:20240223T150000Z
DTEND:20240223T160000Z
RRULE:FREQ=WEEKLY
END:VEVENT
BEGIN:VEVENT
UID:weekly
DTSTAMP:20240201T000000Z
RECURRENCE-ID:20240301T150000Z
SUMMARY:Weekly review (moved)
DTSTART:20240301T170000Z
DTEND:20240301T180000Z
END:VEVENT
END:VCALENDAR`)

	start, end := agenda.DayBounds(time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC), time.UTC)
	events := expandCalendar(discardLogger(), cal, start, end, time.UTC, "caldav-test")
	sortEvents(events, time.UTC)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[0].Summary != "Daily sync" || events[0].Start.DateTime != "2024-03-01T09:00:00Z" {
		t.Fatalf("unexpected daily occurrence: %+v", events[0])
	}
	if events[1].Summary != "Weekly review (moved)" || events[1].Start.DateTime != "2024-03-01T17:00:00Z" {
		t.Fatalf("override not applied: %+v", events[1])
	}
}

func TestSortEvents_UnparseableLast(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		{Summary: "broken", Start: models.EventStart{DateTime: "garbage"}},
		{Summary: "late", Start: models.EventStart{DateTime: "2024-03-01T18:00:00Z"}},
		{Summary: "early", Start: models.EventStart{DateTime: "2024-03-01T08:00:00Z"}},
	}
	sortEvents(events, time.UTC)

	got := []string{events[0].Summary, events[1].Summary, events[2].Summary}
	if strings.Join(got, ",") != "early,late,broken" {
		t.Fatalf("unexpected order: %v", got)
	}
}
