package weather

import (
	"context"
)

// Geocoder resolves a city name to coordinates (e.g. OpenWeatherMap direct geocoding, Google).
type Geocoder interface {
	Geocode(ctx context.Context, city string) (Coordinates, error)
}

// Fetcher retrieves the current normalized reading at a point.
// The returned Reading has no City set; the caller owns that.
type Fetcher interface {
	Current(ctx context.Context, at Coordinates) (Reading, error)
}

// ReadingStore is the append-only time series of raw readings.
// AppendReading also sweeps every reading older than the retention window,
// after its own write has completed.
type ReadingStore interface {
	AppendReading(ctx context.Context, r Reading) error
	Readings(ctx context.Context, filter ReadingFilter) ([]Reading, error)
}

// SummaryStore holds one DailySummary per (date, city).
type SummaryStore interface {
	UpsertSummary(ctx context.Context, s DailySummary) error
	Summaries(ctx context.Context) ([]DailySummary, error)
}

// AlertStore is the append-only log of alert events.
type AlertStore interface {
	AppendAlert(ctx context.Context, e AlertEvent) error
	Alerts(ctx context.Context) ([]AlertEvent, error)
}

// Store is the contract every persistence backend (memory, SQLite, PostgreSQL) satisfies.
type Store interface {
	ReadingStore
	SummaryStore
	AlertStore
	Close() error
}
