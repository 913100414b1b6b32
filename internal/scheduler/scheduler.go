package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// Runner is the work the scheduler drives. *weather.Service implements it.
type Runner interface {
	RunFetchCycle(ctx context.Context, cities []string) weather.CycleResult
	AggregateToday(ctx context.Context) ([]weather.DailySummary, error)
}

// Options configures a Scheduler.
type Options struct {
	// FetchInterval is the fetch-cycle period. Defaults to 30 seconds.
	FetchInterval time.Duration

	// Location is the time zone of the daily job. Defaults to time.Local.
	Location *time.Location

	Logger zerolog.Logger
}

// Scheduler owns two repeating jobs: the fetch cycle over every configured
// city and the daily aggregation at weather.AggregationTime.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	cities    []string
	interval  time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped atomic.Bool
}

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrStopped is returned by Start once Stop has been called.
	ErrStopped = errors.New("scheduler stopped")
)

// New creates an idle Scheduler.
func New(cities []string, runner Runner, opts Options) *Scheduler {
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(opts.Location),
		runner:    runner,
		cities:    append([]string(nil), cities...),
		interval:  opts.FetchInterval,
		logger:    opts.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules both jobs and starts the underlying scheduler. The fetch
// cycle fires immediately and then every interval; a cycle that overruns the
// interval is not overlapped by the next one.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	if len(s.cities) == 0 {
		s.logger.Warn().Msg("no cities configured; fetch cycle not scheduled")
	} else {
		_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.fetchJob)
		if err != nil {
			return fmt.Errorf("scheduling fetch job: %w", err)
		}
	}

	_, err := s.scheduler.Every(1).Day().At(weather.AggregationTime).Do(s.aggregateJob)
	if err != nil {
		s.scheduler.Clear()
		return fmt.Errorf("scheduling aggregation job: %w", err)
	}

	s.scheduler.StartAsync()
	s.started = true

	s.logger.Info().
		Strs("cities", s.cities).
		Dur("interval", s.interval).
		Str("daily_at", weather.AggregationTime).
		Msg("scheduler started")
	return nil
}

// Stop prevents any further job from starting. A job already running is
// allowed to finish.
func (s *Scheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.scheduler.Stop()
	}
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) fetchJob() {
	if s.stopped.Load() {
		return
	}
	defer s.recoverJob("fetch")

	s.logger.Debug().Msg("running fetch cycle")
	s.runner.RunFetchCycle(context.Background(), s.cities)
}

func (s *Scheduler) aggregateJob() {
	if s.stopped.Load() {
		return
	}
	defer s.recoverJob("aggregate")

	summaries, err := s.runner.AggregateToday(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("daily aggregation failed")
		return
	}
	s.logger.Info().Int("summaries", len(summaries)).Msg("daily aggregation completed")
}

func (s *Scheduler) recoverJob(job string) {
	if r := recover(); r != nil {
		s.logger.Error().
			Str("job", job).
			Interface("panic", r).
			Msg("scheduled job panicked")
	}
}
