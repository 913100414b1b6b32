package weather

import (
	"time"
)

// DateLayout is the calendar-date format used for daily summaries.
const DateLayout = "2006-01-02"

// Coordinates is a geographic point returned by a Geocoder.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Reading is one normalized observation for one city at one instant.
// Temperatures are always Celsius.
type Reading struct {
	Timestamp   time.Time `json:"dt"` // second precision
	City        string    `json:"city"`
	Condition   string    `json:"main_condition"`
	Temperature float64   `json:"temp"`
	FeelsLike   float64   `json:"feels_like"`
	Pressure    float64   `json:"pressure"`
	Humidity    float64   `json:"humidity"`
	Rain        float64   `json:"rain"`
	Clouds      float64   `json:"clouds"`
}

// DailySummary is the rollup of one city's readings for one calendar date.
type DailySummary struct {
	Date              string  `json:"date"`
	City              string  `json:"city"`
	AvgTemp           float64 `json:"avg_temp"`
	MaxTemp           float64 `json:"max_temp"`
	MinTemp           float64 `json:"min_temp"`
	DominantCondition string  `json:"dom_condition"`
}

// AlertEvent records one metric of one reading falling outside its range.
type AlertEvent struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"dt"`
	City      string    `json:"city"`
	Trigger   string    `json:"trigger"`
	Reason    string    `json:"reason"`
}

// ReadingFilter narrows a readings query. Zero values are unbounded.
type ReadingFilter struct {
	City string
	From time.Time // inclusive
	To   time.Time // inclusive
}

// Match reports whether r passes the filter.
func (f ReadingFilter) Match(r Reading) bool {
	if f.City != "" && r.City != f.City {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	return true
}

// DayWindow returns the inclusive [00:00:00, 23:59:59] window of the
// calendar day containing t, evaluated in loc.
func DayWindow(t time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	from = time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	to = from.AddDate(0, 0, 1).Add(-time.Second)
	return from, to
}

// RetentionWindow is how long raw readings are kept.
const RetentionWindow = 24 * time.Hour

// AggregationTime is the local wall-clock time of the daily rollup.
const AggregationTime = "00:01"
