package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	httpapi "github.com/i474232898/weather-monitor/internal/api/http"
	"github.com/i474232898/weather-monitor/internal/config"
	"github.com/i474232898/weather-monitor/internal/logging"
	"github.com/i474232898/weather-monitor/internal/scheduler"
	"github.com/i474232898/weather-monitor/internal/store"
	"github.com/i474232898/weather-monitor/internal/weather"
	"github.com/i474232898/weather-monitor/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	log.Info().
		Strs("cities", cfg.Cities).
		Str("store", cfg.DBDriver).
		Str("geocoder", cfg.Geocoder).
		Str("timezone", cfg.Location.String()).
		Msg("starting weather monitor")

	ctx := context.Background()

	// Persistence backend.
	db, err := store.Open(ctx, cfg.StoreConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	// Shared HTTP client and pacing for outbound upstream calls.
	httpCfg := providers.HTTPClientConfig{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	if cfg.UpstreamRatePerSec > 0 {
		burst := int(cfg.UpstreamRatePerSec)
		if burst < 1 {
			burst = 1
		}
		httpCfg.Limiter = rate.NewLimiter(rate.Limit(cfg.UpstreamRatePerSec), burst)
	}

	owm := providers.NewOpenWeatherClient(providers.OpenWeatherConfig{
		APIKey: cfg.OpenWeatherAPIKey,
		HTTP:   httpCfg,
		Logger: log.With().Str("component", "openweather").Logger(),
	})

	var geocoder weather.Geocoder = owm
	if cfg.Geocoder == config.GeocoderGoogle {
		geocoder = providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey, "")
	}

	// Core service orchestrating fetch, store, evaluation and rollup.
	service := weather.NewService(weather.ServiceConfig{
		Geocoder:    geocoder,
		Fetcher:     owm,
		Store:       db,
		Thresholds:  weather.NewThresholds(weather.DefaultThresholds()),
		Logger:      log.With().Str("component", "service").Logger(),
		Location:    cfg.Location,
		CityTimeout: 3 * cfg.HTTPTimeout,
	})

	sched := scheduler.New(cfg.Cities, service, scheduler.Options{
		FetchInterval: cfg.FetchInterval,
		Location:      cfg.Location,
		Logger:        log,
	})
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, httpapi.Options{
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		SummariesTTL:    cfg.CacheSummariesTTL,
		ReadingsTTL:     cfg.CacheReadingsTTL,
		Logger:          log.With().Str("component", "http").Logger(),
	})

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	log.Info().Msg("shutting down")

	shutdown(app.ShutdownWithContext, sched, log)
}

func shutdown(stopHTTP func(context.Context) error, sched *scheduler.Scheduler, log zerolog.Logger) {
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := stopHTTP(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
