package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/i474232898/weather-monitor/internal/weather"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS realtime_weather (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dt INTEGER NOT NULL,
		city TEXT NOT NULL,
		main_condition TEXT NOT NULL,
		temp REAL NOT NULL,
		feels_like REAL NOT NULL,
		pressure REAL NOT NULL,
		humidity REAL NOT NULL,
		rain REAL NOT NULL,
		clouds REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_realtime_weather_dt ON realtime_weather(dt)`,
	`CREATE INDEX IF NOT EXISTS idx_realtime_weather_city_dt ON realtime_weather(city, dt)`,
	`CREATE TABLE IF NOT EXISTS daily_weather (
		date TEXT NOT NULL,
		city TEXT NOT NULL,
		avg_temp REAL NOT NULL,
		max_temp REAL NOT NULL,
		min_temp REAL NOT NULL,
		dom_condition TEXT NOT NULL,
		PRIMARY KEY (date, city)
	)`,
	`CREATE TABLE IF NOT EXISTS alert_events (
		event_id TEXT PRIMARY KEY,
		dt INTEGER NOT NULL,
		city TEXT NOT NULL,
		trigger_name TEXT NOT NULL,
		reason TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_events_dt ON alert_events(dt)`,
}

// SQLiteStore persists to a SQLite database file.
//
// The pool is limited to one connection, which serializes writers and lets
// ":memory:" databases be shared across calls.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string, opts Options) (*SQLiteStore, error) {
	if path == "" {
		path = "weather.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, opts: opts.withDefaults()}, nil
}

// AppendReading inserts r and sweeps expired readings in one transaction.
func (s *SQLiteStore) AppendReading(ctx context.Context, r weather.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO realtime_weather
			(dt, city, main_condition, temp, feels_like, pressure, humidity, rain, clouds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.Unix(), r.City, r.Condition, r.Temperature, r.FeelsLike,
		r.Pressure, r.Humidity, r.Rain, r.Clouds,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	cutoff := s.opts.Now().Add(-s.opts.Retention)
	if _, err := tx.ExecContext(ctx, `DELETE FROM realtime_weather WHERE dt < ?`, cutoff.Unix()); err != nil {
		return fmt.Errorf("sweep readings: %w", err)
	}

	return tx.Commit()
}

// Readings returns readings matching filter ordered by timestamp, then city.
func (s *SQLiteStore) Readings(ctx context.Context, filter weather.ReadingFilter) ([]weather.Reading, error) {
	var (
		where []string
		args  []any
	)
	if filter.City != "" {
		where = append(where, "city = ?")
		args = append(args, filter.City)
	}
	if !filter.From.IsZero() {
		where = append(where, "dt >= ?")
		args = append(args, filter.From.Unix())
	}
	if !filter.To.IsZero() {
		where = append(where, "dt <= ?")
		args = append(args, filter.To.Unix())
	}

	query := `SELECT dt, city, main_condition, temp, feels_like, pressure, humidity, rain, clouds
		FROM realtime_weather`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY dt, city, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var result []weather.Reading
	for rows.Next() {
		var (
			r  weather.Reading
			dt int64
		)
		if err := rows.Scan(&dt, &r.City, &r.Condition, &r.Temperature, &r.FeelsLike,
			&r.Pressure, &r.Humidity, &r.Rain, &r.Clouds); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = time.Unix(dt, 0)
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertSummary inserts or fully replaces the summary for (date, city).
func (s *SQLiteStore) UpsertSummary(ctx context.Context, sum weather.DailySummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_weather (date, city, avg_temp, max_temp, min_temp, dom_condition)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, city) DO UPDATE SET
			avg_temp = excluded.avg_temp,
			max_temp = excluded.max_temp,
			min_temp = excluded.min_temp,
			dom_condition = excluded.dom_condition`,
		sum.Date, sum.City, sum.AvgTemp, sum.MaxTemp, sum.MinTemp, sum.DominantCondition,
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// Summaries returns all summaries ordered by date, then city.
func (s *SQLiteStore) Summaries(ctx context.Context) ([]weather.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, city, avg_temp, max_temp, min_temp, dom_condition
		FROM daily_weather
		ORDER BY date, city`)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var result []weather.DailySummary
	for rows.Next() {
		var sum weather.DailySummary
		if err := rows.Scan(&sum.Date, &sum.City, &sum.AvgTemp, &sum.MaxTemp, &sum.MinTemp, &sum.DominantCondition); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		result = append(result, sum)
	}
	return result, rows.Err()
}

// AppendAlert inserts e.
func (s *SQLiteStore) AppendAlert(ctx context.Context, e weather.AlertEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_events (event_id, dt, city, trigger_name, reason)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Unix(), e.City, e.Trigger, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Alerts returns all alerts ordered by timestamp.
func (s *SQLiteStore) Alerts(ctx context.Context) ([]weather.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, dt, city, trigger_name, reason
		FROM alert_events
		ORDER BY dt, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var result []weather.AlertEvent
	for rows.Next() {
		var (
			e  weather.AlertEvent
			dt int64
		)
		if err := rows.Scan(&e.ID, &dt, &e.City, &e.Trigger, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		e.Timestamp = time.Unix(dt, 0)
		result = append(result, e)
	}
	return result, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
