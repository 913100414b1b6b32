// Package store provides the persistence backends for readings, daily
// summaries and alert events: in-memory, SQLite and PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options are shared by every backend.
type Options struct {
	// Retention is how long raw readings are kept. Defaults to weather.RetentionWindow.
	Retention time.Duration

	// Now is the clock used by the retention sweep. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = weather.RetentionWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Config selects and configures a backend.
type Config struct {
	Driver     string
	SQLitePath string
	Postgres   PostgresConfig
	Options    Options
}

// Open connects the configured backend and ensures its schema exists.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (weather.Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return NewMemoryStore(cfg.Options), nil
	case DriverSQLite, "":
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath, cfg.Options)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return s, nil
	case DriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.Postgres, cfg.Options)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("host", cfg.Postgres.Host).
			Str("database", cfg.Postgres.Database).
			Msg("postgres store ready")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
