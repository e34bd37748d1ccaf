package domain

import (
	"strconv"
	"time"
)

// ExportRow is one row of the flattened day/stop projection consumed by
// calendar, PDF and text export sinks. There is one row per stop, with the
// day fields repeated for every stop on that day. Days with no stops yield
// one row with zero values for all stop fields.
type ExportRow struct {
	// Trip and day fields, repeated for every stop on the day.
	TripID    string
	TripName  string
	DayNumber int
	Date      string // "2006-01-02"; empty for an undated planning day
	DayNotes  string

	// Stop fields, zero values when the day has no stops.
	StopName      string
	StopCategory  Category
	ArrivalTime   *time.Time
	DepartureTime *time.Time
	StopNotes     string
}

// ExportColumns names the CSV columns in the order CSVRecord writes them.
var ExportColumns = []string{
	"trip_id", "trip_name", "day_number", "date", "day_notes",
	"stop_name", "stop_category", "arrival_time", "departure_time", "stop_notes",
}

// CSVRecord returns r as one CSV record. Times are RFC 3339 in UTC; unset
// times are empty.
func (r ExportRow) CSVRecord() []string {
	return []string{
		r.TripID,
		r.TripName,
		strconv.Itoa(r.DayNumber),
		r.Date,
		r.DayNotes,
		r.StopName,
		string(r.StopCategory),
		formatOptionalTime(r.ArrivalTime),
		formatOptionalTime(r.DepartureTime),
		r.StopNotes,
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
