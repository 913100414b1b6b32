package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-monitor/internal/store"
)

// Geocoder backends.
const (
	GeocoderOpenWeather = "openweather"
	GeocoderGoogle      = "google"
)

// DefaultCities are monitored when WEATHER_CITIES is unset.
var DefaultCities = []string{"Delhi", "Mumbai", "Chennai", "Bangalore", "Kolkata", "Hyderabad"}

type AppConfig struct {
	OpenWeatherAPIKey string `validate:"required"`

	// Cities to monitor, in configuration order.
	Cities []string `validate:"min=1,dive,required"`

	// FetchInterval controls how often every city is fetched.
	FetchInterval time.Duration `validate:"gt=0"`

	// HTTPTimeout bounds each outbound request.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// UpstreamRatePerSec paces outbound calls. Zero disables pacing.
	UpstreamRatePerSec float64 `validate:"gte=0"`

	Geocoder             string `validate:"oneof=openweather google"`
	GoogleGeocoderAPIKey string `validate:"required_if=Geocoder google"`

	// Location is used for calendar days and the daily job.
	Location *time.Location `validate:"required"`

	DBDriver   string `validate:"oneof=sqlite postgres memory"`
	SQLitePath string
	Postgres   store.PostgresConfig

	// Read-side rate guard.
	RateLimitMax    int           `validate:"gt=0"`
	RateLimitWindow time.Duration `validate:"gt=0"`

	CacheSummariesTTL time.Duration `validate:"gte=0"`
	CacheReadingsTTL  time.Duration `validate:"gte=0"`

	LogLevel  string
	LogPretty bool

	Port string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from the environment with sensible defaults. Any
// given .env files are loaded first; a missing file is not an error.
func Load(files ...string) (*AppConfig, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	r := &envReader{}
	cfg := &AppConfig{
		OpenWeatherAPIKey:    os.Getenv("OPENWEATHER_API_KEY"),
		Cities:               parseCities(os.Getenv("WEATHER_CITIES")),
		FetchInterval:        r.duration("FETCH_INTERVAL", 30*time.Second),
		HTTPTimeout:          r.duration("HTTP_TIMEOUT", 10*time.Second),
		UpstreamRatePerSec:   r.float("UPSTREAM_RATE_PER_SEC", 5),
		Geocoder:             strings.ToLower(getenvDefault("GEOCODER", GeocoderOpenWeather)),
		GoogleGeocoderAPIKey: os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		Location:             r.location("TIMEZONE"),
		DBDriver:             strings.ToLower(getenvDefault("DB_DRIVER", store.DriverSQLite)),
		SQLitePath:           getenvDefault("SQLITE_PATH", "weather.db"),
		Postgres: store.PostgresConfig{
			Host:            getenvDefault("DB_HOST", "localhost"),
			Port:            r.int("DB_PORT", 5432),
			User:            getenvDefault("DB_USER", "weather"),
			Password:        getenvDefault("DB_PASSWORD", "localdev"),
			Database:        getenvDefault("DB_NAME", "weather"),
			SSLMode:         getenvDefault("DB_SSL_MODE", "disable"),
			MaxOpenConns:    r.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    r.int("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		RateLimitMax:      r.int("RATE_LIMIT_MAX", 5),
		RateLimitWindow:   r.duration("RATE_LIMIT_WINDOW", 60*time.Second),
		CacheSummariesTTL: r.duration("CACHE_SUMMARIES_TTL", time.Hour),
		CacheReadingsTTL:  r.duration("CACHE_READINGS_TTL", 5*time.Minute),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogPretty:         r.bool("LOG_PRETTY", false),
		Port:              getenvDefault("PORT", "8080"),
	}
	if len(cfg.Cities) == 0 {
		cfg.Cities = append([]string(nil), DefaultCities...)
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// StoreConfig returns the persistence settings.
func (c *AppConfig) StoreConfig() store.Config {
	return store.Config{
		Driver:     c.DBDriver,
		SQLitePath: c.SQLitePath,
		Postgres:   c.Postgres,
	}
}

// parseCities splits a comma-separated list, trimming blanks and duplicates.
func parseCities(raw string) []string {
	seen := make(map[string]bool)
	var cities []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		cities = append(cities, c)
	}
	return cities
}

// envReader parses typed variables and collects every parse failure.
type envReader struct {
	errs []error
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (r *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (r *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (r *envReader) location(key string) *time.Location {
	v := os.Getenv(key)
	if v == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return time.Local
	}
	return loc
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
