package domain

import "time"

// DateOnly truncates t to midnight UTC of its calendar date.
// All day-granularity comparisons in the domain go through this.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MaxTripDays bounds the date range of a trip with custom dates.
const MaxTripDays = 366

// DaysBetween returns the inclusive number of calendar days from start to
// end, or 0 when end is before start.
func DaysBetween(start, end time.Time) int {
	s, e := DateOnly(start), DateOnly(end)
	if e.Before(s) {
		return 0
	}
	// Both are UTC midnights; Unix seconds do not saturate the way a
	// time.Duration does past 292 years.
	return int((e.Unix()-s.Unix())/(24*60*60)) + 1
}

// DateRange returns every calendar date from start to end inclusive.
func DateRange(start, end time.Time) []time.Time {
	n := DaysBetween(start, end)
	out := make([]time.Time, 0, n)
	s := DateOnly(start)
	for i := 0; i < n; i++ {
		out = append(out, s.AddDate(0, 0, i))
	}
	return out
}

// InRange reports whether d falls within [start, end] at day granularity.
func InRange(d, start, end time.Time) bool {
	d = DateOnly(d)
	return !d.Before(DateOnly(start)) && !d.After(DateOnly(end))
}

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] share at least
// one calendar day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !DateOnly(aStart).After(DateOnly(bEnd)) && !DateOnly(aEnd).Before(DateOnly(bStart))
}
