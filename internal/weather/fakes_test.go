package weather

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errStoreDown = errors.New("store down")

// fakeStore is a minimal in-memory Store with switchable failures.
type fakeStore struct {
	mu        sync.Mutex
	readings  []Reading
	summaries map[string]DailySummary
	alerts    []AlertEvent

	failAppendReading bool
	failReadings      bool
	failUpsert        bool
	failAlertsAfter   int // AppendAlert fails once this many alerts are stored; 0 disables
}

func newFakeStore() *fakeStore {
	return &fakeStore{summaries: make(map[string]DailySummary)}
}

func (s *fakeStore) AppendReading(_ context.Context, r Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppendReading {
		return errStoreDown
	}
	s.readings = append(s.readings, r)
	return nil
}

func (s *fakeStore) Readings(_ context.Context, f ReadingFilter) ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReadings {
		return nil, errStoreDown
	}
	var out []Reading
	for _, r := range s.readings {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertSummary(_ context.Context, sum DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert {
		return errStoreDown
	}
	s.summaries[sum.Date+"|"+sum.City] = sum
	return nil
}

func (s *fakeStore) Summaries(context.Context) ([]DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DailySummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date+out[i].City < out[j].Date+out[j].City })
	return out, nil
}

func (s *fakeStore) AppendAlert(_ context.Context, e AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAlertsAfter > 0 && len(s.alerts) >= s.failAlertsAfter {
		return errStoreDown
	}
	s.alerts = append(s.alerts, e)
	return nil
}

func (s *fakeStore) Alerts(context.Context) ([]AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AlertEvent(nil), s.alerts...), nil
}

func (s *fakeStore) Close() error { return nil }
