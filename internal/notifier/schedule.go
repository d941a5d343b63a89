package notifier

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule fires once per day at a fixed time of day in a fixed location.
type Schedule struct {
	Hour     int
	Minute   int
	Location *time.Location

	spec cron.Schedule
}

// NewSchedule validates the time of day and builds the schedule.
func NewSchedule(hour, minute int, loc *time.Location) (Schedule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Schedule{}, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return Schedule{}, fmt.Errorf("failed to build schedule: %w", err)
	}
	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return Schedule{}, fmt.Errorf("unexpected schedule type %T", parsed)
	}
	// Set the zone directly so fixed offsets without an IANA name work too.
	spec.Location = loc
	return Schedule{Hour: hour, Minute: minute, Location: loc, spec: spec}, nil
}

// Next returns the first trigger strictly after now. It depends only on its
// argument, so calling it every cycle never accumulates drift.
//
// Every calendar day gets exactly one trigger. A time of day that falls in a
// spring-forward gap fires once the clocks have jumped, and one that falls in
// a repeated hour fires on its first pass only.
func (s Schedule) Next(now time.Time) time.Time {
	next := s.spec.Next(now)
	y, m, d := next.In(s.Location).Date()

	// cron matches wall clocks, so it skips a day whose time has no match.
	if prev := s.triggerOn(y, m, d-1); prev.After(now) {
		return prev
	}
	// cron can also land on the second pass of a repeated hour.
	if first := s.triggerOn(y, m, d); first.Before(next) {
		if first.After(now) {
			return first
		}
		return s.triggerOn(y, m, d+1)
	}
	return next
}

// triggerOn returns the trigger instant for one calendar day: the earliest
// instant showing the configured wall clock, or, inside a gap, that wall
// clock read with the offset in effect before the gap.
func (s Schedule) triggerOn(y int, m time.Month, d int) time.Time {
	wall := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, time.UTC)
	t := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, s.Location)

	_, before := t.Add(-12 * time.Hour).Zone()
	if !sameWallClock(t.In(s.Location), wall) {
		return wall.Add(-time.Duration(before) * time.Second).In(s.Location)
	}
	if alt := wall.Add(-time.Duration(before) * time.Second); alt.Before(t) && sameWallClock(alt.In(s.Location), wall) {
		return alt.In(s.Location)
	}
	return t
}

func sameWallClock(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute()
}

// String renders the schedule as "HH:MM Zone".
func (s Schedule) String() string {
	return fmt.Sprintf("%02d:%02d %s", s.Hour, s.Minute, s.Location)
}
