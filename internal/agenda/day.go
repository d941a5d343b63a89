package agenda

import "time"

// DayBounds returns local midnight of the day containing ref in loc and the
// midnight that follows it. The range is half-open: [start, end).
func DayBounds(ref time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := ref.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1)
	return start, end
}
