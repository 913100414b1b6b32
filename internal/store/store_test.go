package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// storeFactory opens an empty store using opts.
type storeFactory func(t *testing.T, opts Options) weather.Store

var baseTime = time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func unixTimes(readings []weather.Reading) []int64 {
	out := make([]int64, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.Timestamp.Unix())
	}
	return out
}

// runStoreSuite exercises the behavior every backend shares.
func runStoreSuite(t *testing.T, open storeFactory) {
	t.Run("retention sweep on append", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, Options{Now: fixedClock(baseTime)})

		for _, age := range []time.Duration{30 * time.Hour, 20 * time.Hour, time.Hour} {
			require.NoError(t, s.AppendReading(ctx, weather.Reading{
				Timestamp: baseTime.Add(-age),
				City:      "Mumbai",
				Condition: "Rain",
			}))
		}

		got, err := s.Readings(ctx, weather.ReadingFilter{City: "Mumbai"})
		require.NoError(t, err)
		assert.Equal(t, []int64{
			baseTime.Add(-20 * time.Hour).Unix(),
			baseTime.Add(-time.Hour).Unix(),
		}, unixTimes(got))
	})

	t.Run("sweep covers every city", func(t *testing.T) {
		ctx := context.Background()
		now := baseTime
		s := open(t, Options{Now: func() time.Time { return now }})

		require.NoError(t, s.AppendReading(ctx, weather.Reading{Timestamp: now.Add(-23 * time.Hour), City: "Delhi"}))

		now = now.Add(2 * time.Hour)
		require.NoError(t, s.AppendReading(ctx, weather.Reading{Timestamp: now, City: "Chennai"}))

		got, err := s.Readings(ctx, weather.ReadingFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Chennai", got[0].City)
	})

	t.Run("reading fields round trip", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, Options{Now: fixedClock(baseTime)})

		want := weather.Reading{
			Timestamp:   baseTime.Add(-time.Minute),
			City:        "Kolkata",
			Condition:   "Haze",
			Temperature: 31.45,
			FeelsLike:   36.2,
			Pressure:    1004,
			Humidity:    78,
			Rain:        0.25,
			Clouds:      40,
		}
		require.NoError(t, s.AppendReading(ctx, want))

		got, err := s.Readings(ctx, weather.ReadingFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, want.Timestamp.Equal(got[0].Timestamp))
		got[0].Timestamp = want.Timestamp
		assert.Equal(t, want, got[0])
	})

	t.Run("filter bounds are inclusive", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, Options{Now: fixedClock(baseTime)})

		for i := 0; i < 4; i++ {
			for _, city := range []string{"Delhi", "Mumbai"} {
				require.NoError(t, s.AppendReading(ctx, weather.Reading{
					Timestamp: baseTime.Add(-time.Duration(i) * time.Hour),
					City:      city,
				}))
			}
		}

		got, err := s.Readings(ctx, weather.ReadingFilter{
			City: "Delhi",
			From: baseTime.Add(-2 * time.Hour),
			To:   baseTime.Add(-time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{
			baseTime.Add(-2 * time.Hour).Unix(),
			baseTime.Add(-time.Hour).Unix(),
		}, unixTimes(got))
		for _, r := range got {
			assert.Equal(t, "Delhi", r.City)
		}

		all, err := s.Readings(ctx, weather.ReadingFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 8)
		assert.Equal(t, "Delhi", all[0].City)
		assert.Equal(t, "Mumbai", all[1].City)
	})

	t.Run("upsert replaces summary", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, Options{})

		first := weather.DailySummary{Date: "2024-06-01", City: "Delhi", AvgTemp: 30, MaxTemp: 35, MinTemp: 25, DominantCondition: "Clear"}
		second := weather.DailySummary{Date: "2024-06-01", City: "Delhi", AvgTemp: 31, MaxTemp: 36, MinTemp: 26, DominantCondition: "Haze"}
		other := weather.DailySummary{Date: "2024-05-31", City: "Mumbai", AvgTemp: 28, MaxTemp: 29, MinTemp: 27, DominantCondition: "Rain"}

		require.NoError(t, s.UpsertSummary(ctx, first))
		require.NoError(t, s.UpsertSummary(ctx, other))
		require.NoError(t, s.UpsertSummary(ctx, second))

		got, err := s.Summaries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []weather.DailySummary{other, second}, got)
	})

	t.Run("aggregation is idempotent", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, Options{Now: fixedClock(baseTime)})

		for i, temp := range []float64{28, 32, 25} {
			require.NoError(t, s.AppendReading(ctx, weather.Reading{
				Timestamp:   baseTime.Add(-time.Duration(i+1) * time.Hour),
				City:        "Chennai",
				Condition:   "Clouds",
				Temperature: temp,
			}))
		}

		agg := weather.NewAggregator(s, s, time.UTC, zerolog.Nop())
		for i := 0; i < 2; i++ {
			_, err := agg.Run(ctx, baseTime)
			require.NoError(t, err)
		}

		got, err := s.Summaries(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2024-06-01", got[0].Date)
		assert.Equal(t, "Chennai", got[0].City)
		assert.InDelta(t, 28.33, got[0].AvgTemp, 0.01)
		assert.Equal(t, 32.0, got[0].MaxTemp)
		assert.Equal(t, 25.0, got[0].MinTemp)
		assert.Equal(t, "Clouds", got[0].DominantCondition)
	})

	t.Run("alerts", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, Options{})

		empty, err := s.Alerts(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		events := []weather.AlertEvent{
			{ID: "5b0c7a52-9a3f-4a57-8d0b-8f1f4b9c0a01", Timestamp: baseTime, City: "Delhi", Trigger: weather.TriggerTemperature, Reason: "Found temp: 35 but threshold is [20, 30]"},
			{ID: "5b0c7a52-9a3f-4a57-8d0b-8f1f4b9c0a02", Timestamp: baseTime.Add(time.Minute), City: "Delhi", Trigger: weather.TriggerHumidity, Reason: "Found humidity: 95 but threshold is [10, 90]"},
		}
		for _, e := range events {
			require.NoError(t, s.AppendAlert(ctx, e))
		}

		got, err := s.Alerts(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for i := range events {
			assert.Equal(t, events[i].ID, got[i].ID)
			assert.Equal(t, events[i].Trigger, got[i].Trigger)
			assert.Equal(t, events[i].Reason, got[i].Reason)
			assert.True(t, events[i].Timestamp.Equal(got[i].Timestamp))
		}
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: DriverMemory}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, s.Close())
}
