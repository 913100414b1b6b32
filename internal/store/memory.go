package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Used for tests and for running without a database.
type MemoryStore struct {
	mu sync.RWMutex

	readings  []weather.Reading
	summaries map[string]weather.DailySummary // key: date|city
	alerts    []weather.AlertEvent

	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	return &MemoryStore{
		summaries: make(map[string]weather.DailySummary),
		retention: opts.Retention,
		now:       opts.Now,
	}
}

// AppendReading appends r and then drops every reading older than the
// retention window, all under one write lock.
func (s *MemoryStore) AppendReading(_ context.Context, r weather.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, r)

	cutoff := s.now().Add(-s.retention)
	kept := s.readings[:0]
	for _, existing := range s.readings {
		if !existing.Timestamp.Before(cutoff) {
			kept = append(kept, existing)
		}
	}
	// Clear the tail so dropped readings can be collected.
	for i := len(kept); i < len(s.readings); i++ {
		s.readings[i] = weather.Reading{}
	}
	s.readings = kept
	return nil
}

// Readings returns readings matching filter ordered by timestamp, then city.
func (s *MemoryStore) Readings(_ context.Context, filter weather.ReadingFilter) ([]weather.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.Reading, 0, len(s.readings))
	for _, r := range s.readings {
		if filter.Match(r) {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].City < result[j].City
	})
	return result, nil
}

// UpsertSummary inserts or fully replaces the summary for (date, city).
func (s *MemoryStore) UpsertSummary(_ context.Context, sum weather.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.Date+"|"+sum.City] = sum
	return nil
}

// Summaries returns all summaries ordered by date, then city.
func (s *MemoryStore) Summaries(_ context.Context) ([]weather.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.DailySummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		result = append(result, sum)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].City < result[j].City
	})
	return result, nil
}

// AppendAlert appends e.
func (s *MemoryStore) AppendAlert(_ context.Context, e weather.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, e)
	return nil
}

// Alerts returns all alerts in insertion order.
func (s *MemoryStore) Alerts(_ context.Context) ([]weather.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.AlertEvent, len(s.alerts))
	copy(result, s.alerts)
	return result, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
