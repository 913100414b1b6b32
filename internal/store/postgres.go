package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// PostgresConfig holds database connection configuration.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConnectionString returns the PostgreSQL connection string.
func (c PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS realtime_weather (
		id BIGSERIAL PRIMARY KEY,
		dt TIMESTAMPTZ NOT NULL,
		city TEXT NOT NULL,
		main_condition TEXT NOT NULL,
		temp DOUBLE PRECISION NOT NULL,
		feels_like DOUBLE PRECISION NOT NULL,
		pressure DOUBLE PRECISION NOT NULL,
		humidity DOUBLE PRECISION NOT NULL,
		rain DOUBLE PRECISION NOT NULL,
		clouds DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_realtime_weather_dt ON realtime_weather(dt)`,
	`CREATE INDEX IF NOT EXISTS idx_realtime_weather_city_dt ON realtime_weather(city, dt)`,
	`CREATE TABLE IF NOT EXISTS daily_weather (
		date DATE NOT NULL,
		city TEXT NOT NULL,
		avg_temp DOUBLE PRECISION NOT NULL,
		max_temp DOUBLE PRECISION NOT NULL,
		min_temp DOUBLE PRECISION NOT NULL,
		dom_condition TEXT NOT NULL,
		PRIMARY KEY (date, city)
	)`,
	`CREATE TABLE IF NOT EXISTS alert_events (
		event_id UUID PRIMARY KEY,
		dt TIMESTAMPTZ NOT NULL,
		city TEXT NOT NULL,
		trigger_name TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_events_dt ON alert_events(dt)`,
}

// PostgresStore is a PostgreSQL implementation of weather.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts Options
}

// NewPostgresStore creates a connection pool, verifies it and applies the schema.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, opts Options) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns) //nolint:gosec // bounded by config validation
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns) //nolint:gosec // bounded by config validation
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool, opts: opts.withDefaults()}, nil
}

// AppendReading inserts r and sweeps expired readings in one transaction.
func (s *PostgresStore) AppendReading(ctx context.Context, r weather.Reading) error {
	cutoff := s.opts.Now().Add(-s.opts.Retention)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO realtime_weather
				(dt, city, main_condition, temp, feels_like, pressure, humidity, rain, clouds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.Timestamp, r.City, r.Condition, r.Temperature, r.FeelsLike,
			r.Pressure, r.Humidity, r.Rain, r.Clouds,
		)
		if err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM realtime_weather WHERE dt < $1`, cutoff); err != nil {
			return fmt.Errorf("sweep readings: %w", err)
		}
		return nil
	})
}

// Readings returns readings matching filter ordered by timestamp, then city.
func (s *PostgresStore) Readings(ctx context.Context, filter weather.ReadingFilter) ([]weather.Reading, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.City != "" {
		args = append(args, filter.City)
		where = append(where, fmt.Sprintf("city = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("dt >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("dt <= $%d", len(args)))
	}

	query := `
		SELECT dt, city, main_condition, temp, feels_like, pressure, humidity, rain, clouds
		FROM realtime_weather`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY dt, city, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var result []weather.Reading
	for rows.Next() {
		var r weather.Reading
		if err := rows.Scan(&r.Timestamp, &r.City, &r.Condition, &r.Temperature, &r.FeelsLike,
			&r.Pressure, &r.Humidity, &r.Rain, &r.Clouds); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertSummary inserts or fully replaces the summary for (date, city).
func (s *PostgresStore) UpsertSummary(ctx context.Context, sum weather.DailySummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_weather (date, city, avg_temp, max_temp, min_temp, dom_condition)
		VALUES ($1::date, $2, $3, $4, $5, $6)
		ON CONFLICT (date, city) DO UPDATE SET
			avg_temp = EXCLUDED.avg_temp,
			max_temp = EXCLUDED.max_temp,
			min_temp = EXCLUDED.min_temp,
			dom_condition = EXCLUDED.dom_condition`,
		sum.Date, sum.City, sum.AvgTemp, sum.MaxTemp, sum.MinTemp, sum.DominantCondition,
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// Summaries returns all summaries ordered by date, then city.
func (s *PostgresStore) Summaries(ctx context.Context) ([]weather.DailySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date::text, city, avg_temp, max_temp, min_temp, dom_condition
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
func (s *PostgresStore) AppendAlert(ctx context.Context, e weather.AlertEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_events (event_id, dt, city, trigger_name, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Timestamp, e.City, e.Trigger, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Alerts returns all alerts ordered by timestamp.
func (s *PostgresStore) Alerts(ctx context.Context) ([]weather.AlertEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id::text, dt, city, trigger_name, reason
		FROM alert_events
		ORDER BY dt, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var result []weather.AlertEvent
	for rows.Next() {
		var e weather.AlertEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.City, &e.Trigger, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
