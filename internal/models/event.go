package models

// EventStart is the start boundary of an event as reported by the calendar.
// All-day events carry only Date; timed events carry DateTime.
type EventStart struct {
	Date     string // "2006-01-02" for all-day events
	DateTime string // RFC 3339 timestamp with offset
}

// Raw returns the start value as reported, preferring the timestamp.
func (s EventStart) Raw() string {
	if s.DateTime != "" {
		return s.DateTime
	}
	return s.Date
}

// AllDay reports whether the event has no specific time of day.
func (s EventStart) AllDay() bool {
	return s.DateTime == "" && s.Date != ""
}

// Event represents a calendar event as consumed by the notifier.
// This is an internal representation, independent of any specific calendar provider.
type Event struct {
	ID       string     // Identifier in the source calendar
	Summary  string     // Summary or title of the event
	Start    EventStart // Start boundary
	Location string     // Location of the event
	Source   string     // The source of the event (e.g., "google-primary")
}
