package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Geocoder   Geocoder
	Fetcher    Fetcher
	Store      Store
	Thresholds *Thresholds
	Logger     zerolog.Logger

	// Location is used for calendar-day boundaries. Defaults to time.Local.
	Location *time.Location

	// CityTimeout bounds one city's pipeline. Defaults to 30 seconds.
	CityTimeout time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service orchestrates the fetch → store → evaluate pipeline and the daily
// rollup, and serves the read side to the HTTP layer.
type Service struct {
	geocoder    Geocoder
	fetcher     Fetcher
	store       Store
	thresholds  *Thresholds
	evaluator   *Evaluator
	aggregator  *Aggregator
	logger      zerolog.Logger
	loc         *time.Location
	cityTimeout time.Duration
	now         func() time.Time
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Thresholds == nil {
		cfg.Thresholds = NewThresholds(DefaultThresholds())
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CityTimeout <= 0 {
		cfg.CityTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		geocoder:    cfg.Geocoder,
		fetcher:     cfg.Fetcher,
		store:       cfg.Store,
		thresholds:  cfg.Thresholds,
		evaluator:   NewEvaluator(cfg.Thresholds, cfg.Store, cfg.Logger),
		aggregator:  NewAggregator(cfg.Store, cfg.Store, cfg.Location, cfg.Logger),
		logger:      cfg.Logger,
		loc:         cfg.Location,
		cityTimeout: cfg.CityTimeout,
		now:         cfg.Now,
	}
}

// FetchAndStore runs the pipeline for a single city: geocode, fetch, append
// the reading, then evaluate it against the thresholds.
func (s *Service) FetchAndStore(ctx context.Context, city string) (Reading, []AlertEvent, error) {
	if city == "" {
		return Reading{}, nil, fmt.Errorf("city must not be empty")
	}

	coords, err := s.geocoder.Geocode(ctx, city)
	if err != nil {
		return Reading{}, nil, fmt.Errorf("geocode %s: %w", city, err)
	}

	reading, err := s.fetcher.Current(ctx, coords)
	if err != nil {
		return Reading{}, nil, fmt.Errorf("fetch %s: %w", city, err)
	}
	reading.City = city
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now()
	}
	reading.Timestamp = reading.Timestamp.Truncate(time.Second)

	if err := s.store.AppendReading(ctx, reading); err != nil {
		return reading, nil, fmt.Errorf("%w: append reading for %s: %w", ErrPersistence, city, err)
	}

	alerts, err := s.evaluator.Evaluate(ctx, reading)
	if err != nil {
		return reading, alerts, fmt.Errorf("evaluate %s: %w", city, err)
	}
	return reading, alerts, nil
}

// CityError describes one city that failed during a fetch cycle.
type CityError struct {
	City string
	Err  error
}

func (e CityError) Error() string {
	return e.City + ": " + e.Err.Error()
}

func (e CityError) Unwrap() error {
	return e.Err
}

// CycleResult summarizes one fetch cycle.
type CycleResult struct {
	StartTime time.Time
	Duration  time.Duration
	Succeeded []string
	Failed    []CityError
	Alerts    int
}

// RunFetchCycle runs the pipeline for every city concurrently. Each city has
// its own timeout and failure boundary: an error or panic in one city is
// recorded and logged and never affects the others.
func (s *Service) RunFetchCycle(ctx context.Context, cities []string) CycleResult {
	result := CycleResult{StartTime: s.now()}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()

			alerts, err := s.runCity(ctx, city)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, CityError{City: city, Err: err})
				s.logger.Error().Err(err).Str("city", city).Msg("fetch cycle failed for city")
				return
			}
			result.Succeeded = append(result.Succeeded, city)
			result.Alerts += alerts
		}(city)
	}
	wg.Wait()

	result.Duration = s.now().Sub(result.StartTime)
	s.logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Int("alerts", result.Alerts).
		Dur("duration", result.Duration).
		Msg("fetch cycle completed")

	return result
}

func (s *Service) runCity(ctx context.Context, city string) (alerts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in pipeline: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cityTimeout)
	defer cancel()

	reading, events, err := s.FetchAndStore(ctx, city)
	if err != nil {
		return len(events), err
	}
	s.logger.Debug().
		Str("city", city).
		Time("dt", reading.Timestamp).
		Float64("temp", reading.Temperature).
		Int("alerts", len(events)).
		Msg("reading stored")
	return len(events), nil
}

// AggregateDay rolls up the calendar day containing day.
func (s *Service) AggregateDay(ctx context.Context, day time.Time) ([]DailySummary, error) {
	return s.aggregator.Run(ctx, day)
}

// AggregateToday rolls up the current calendar day.
func (s *Service) AggregateToday(ctx context.Context) ([]DailySummary, error) {
	return s.aggregator.Run(ctx, s.now())
}

// Location returns the location used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Thresholds returns the shared threshold configuration.
func (s *Service) Thresholds() *Thresholds {
	return s.thresholds
}

// Alerts returns every stored alert event.
func (s *Service) Alerts(ctx context.Context) ([]AlertEvent, error) {
	return s.store.Alerts(ctx)
}

// Summaries returns every stored daily summary.
func (s *Service) Summaries(ctx context.Context) ([]DailySummary, error) {
	return s.store.Summaries(ctx)
}

// Readings returns every retained raw reading.
func (s *Service) Readings(ctx context.Context) ([]Reading, error) {
	return s.store.Readings(ctx, ReadingFilter{})
}

// ReadingsToday returns city's readings for the current calendar day.
func (s *Service) ReadingsToday(ctx context.Context, city string) ([]Reading, error) {
	from, to := DayWindow(s.now(), s.loc)
	return s.store.Readings(ctx, ReadingFilter{City: city, From: from, To: to})
}
