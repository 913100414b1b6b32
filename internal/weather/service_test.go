package weather

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeocoder struct {
	coords map[string]Coordinates
}

func (g *fakeGeocoder) Geocode(_ context.Context, city string) (Coordinates, error) {
	c, ok := g.coords[city]
	if !ok {
		return Coordinates{}, fmt.Errorf("%w: no geocoding results for %q", ErrUpstream, city)
	}
	return c, nil
}

// fakeFetcher returns a calm reading keyed by latitude. Latitude -1 panics.
type fakeFetcher struct {
	at time.Time
}

func (f *fakeFetcher) Current(_ context.Context, c Coordinates) (Reading, error) {
	if c.Lat == -1 {
		panic("decoder exploded")
	}
	r := calmReading("")
	r.Timestamp = f.at
	r.Temperature = c.Lat
	return r, nil
}

var sixCities = []string{"Delhi", "Mumbai", "Chennai", "Bangalore", "Kolkata", "Hyderabad"}

func newTestService(st Store, geo Geocoder, now time.Time) *Service {
	return NewService(ServiceConfig{
		Geocoder: geo,
		Fetcher:  &fakeFetcher{at: now.Add(250 * time.Millisecond)},
		Store:    st,
		Logger:   zerolog.Nop(),
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func TestRunFetchCycleIsolatesFailingCity(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	geo := &fakeGeocoder{coords: map[string]Coordinates{}}
	for i, c := range sixCities {
		if i == 2 {
			continue // third city fails to geocode
		}
		geo.coords[c] = Coordinates{Lat: float64(20 + i)}
	}

	st := newFakeStore()
	svc := newTestService(st, geo, now)

	res := svc.RunFetchCycle(context.Background(), sixCities)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "Chennai", res.Failed[0].City)
	assert.ErrorIs(t, res.Failed[0], ErrUpstream)
	assert.Len(t, res.Succeeded, 5)
	assert.Zero(t, res.Alerts)

	readings, err := st.Readings(context.Background(), ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, readings, 5)

	var cities []string
	for _, r := range readings {
		cities = append(cities, r.City)
		assert.Equal(t, now, r.Timestamp, "timestamps are truncated to the second")
	}
	sort.Strings(cities)
	assert.Equal(t, []string{"Bangalore", "Delhi", "Hyderabad", "Kolkata", "Mumbai"}, cities)
}

func TestRunFetchCycleRecoversPanic(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	geo := &fakeGeocoder{coords: map[string]Coordinates{
		"Delhi":  {Lat: 25},
		"Mumbai": {Lat: -1},
	}}

	st := newFakeStore()
	res := newTestService(st, geo, now).RunFetchCycle(context.Background(), []string{"Delhi", "Mumbai"})

	assert.Equal(t, []string{"Delhi"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "Mumbai", res.Failed[0].City)
	assert.Contains(t, res.Failed[0].Error(), "panic")
}

func TestFetchAndStoreEvaluatesReading(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	geo := &fakeGeocoder{coords: map[string]Coordinates{"Delhi": {Lat: 35}}}
	st := newFakeStore()
	svc := newTestService(st, geo, now)

	cfg := svc.Thresholds().Get()
	cfg.Temperature = Range{20, 30}
	require.NoError(t, svc.Thresholds().Update(cfg))

	reading, alerts, err := svc.FetchAndStore(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, "Delhi", reading.City)
	assert.Equal(t, 35.0, reading.Temperature)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Found temp: 35 but threshold is [20, 30]", alerts[0].Reason)

	stored, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestFetchAndStoreSkipsEvaluationWhenAppendFails(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	geo := &fakeGeocoder{coords: map[string]Coordinates{"Delhi": {Lat: 200}}}
	st := newFakeStore()
	st.failAppendReading = true

	_, alerts, err := newTestService(st, geo, now).FetchAndStore(context.Background(), "Delhi")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, alerts)
	assert.Empty(t, st.alerts)
}

func TestFetchAndStoreRejectsEmptyCity(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGeocoder{}, time.Now())

	_, _, err := svc.FetchAndStore(context.Background(), "")
	assert.Error(t, err)
}

func TestReadingsTodayFiltersCityAndDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	st := newFakeStore()
	svc := newTestService(st, &fakeGeocoder{}, now)

	require.NoError(t, st.AppendReading(ctx, Reading{Timestamp: now.Add(-time.Hour), City: "Mumbai"}))
	require.NoError(t, st.AppendReading(ctx, Reading{Timestamp: now.Add(-15 * time.Hour), City: "Mumbai"}))
	require.NoError(t, st.AppendReading(ctx, Reading{Timestamp: now, City: "Delhi"}))

	got, err := svc.ReadingsToday(ctx, "Mumbai")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, now.Add(-time.Hour), got[0].Timestamp)

	all, err := svc.Readings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAggregateTodayUsesClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	st := newFakeStore()
	svc := newTestService(st, &fakeGeocoder{}, now)

	require.NoError(t, st.AppendReading(ctx, Reading{Timestamp: now, City: "Delhi", Condition: "Clear", Temperature: 30}))

	got, err := svc.AggregateToday(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-06-01", got[0].Date)

	summaries, err := svc.Summaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, summaries)
}
