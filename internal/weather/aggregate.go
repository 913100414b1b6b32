package weather

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Summarize partitions readings by city and rolls each partition into one
// DailySummary for date. Output is ordered by city.
//
// The dominant condition is the lexicographically greatest label seen that
// day, not the most frequent one.
func Summarize(date string, readings []Reading) []DailySummary {
	type acc struct {
		sum, max, min float64
		n             int
		dominant      string
	}

	byCity := make(map[string]*acc)
	for _, r := range readings {
		a, ok := byCity[r.City]
		if !ok {
			a = &acc{max: r.Temperature, min: r.Temperature, dominant: r.Condition}
			byCity[r.City] = a
		}
		a.sum += r.Temperature
		a.n++
		if r.Temperature > a.max {
			a.max = r.Temperature
		}
		if r.Temperature < a.min {
			a.min = r.Temperature
		}
		if r.Condition > a.dominant {
			a.dominant = r.Condition
		}
	}

	cities := make([]string, 0, len(byCity))
	for c := range byCity {
		cities = append(cities, c)
	}
	sort.Strings(cities)

	out := make([]DailySummary, 0, len(cities))
	for _, c := range cities {
		a := byCity[c]
		out = append(out, DailySummary{
			Date:              date,
			City:              c,
			AvgTemp:           a.sum / float64(a.n),
			MaxTemp:           a.max,
			MinTemp:           a.min,
			DominantCondition: a.dominant,
		})
	}
	return out
}

// Aggregator rolls a day's raw readings into daily summaries.
type Aggregator struct {
	readings  ReadingStore
	summaries SummaryStore
	loc       *time.Location
	logger    zerolog.Logger
}

// NewAggregator creates an Aggregator. Day boundaries are computed in loc.
func NewAggregator(readings ReadingStore, summaries SummaryStore, loc *time.Location, logger zerolog.Logger) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		readings:  readings,
		summaries: summaries,
		loc:       loc,
		logger:    logger,
	}
}

// Run aggregates the calendar day containing day and upserts one summary
// per city. Re-running for the same day overwrites the previous rows. The
// first store failure aborts the run.
func (a *Aggregator) Run(ctx context.Context, day time.Time) ([]DailySummary, error) {
	from, to := DayWindow(day, a.loc)
	date := from.Format(DateLayout)

	readings, err := a.readings.Readings(ctx, ReadingFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("%w: read readings for %s: %w", ErrPersistence, date, err)
	}

	summaries := Summarize(date, readings)
	for _, s := range summaries {
		if err := a.summaries.UpsertSummary(ctx, s); err != nil {
			return nil, fmt.Errorf("%w: upsert summary %s/%s: %w", ErrPersistence, s.Date, s.City, err)
		}
	}

	a.logger.Info().
		Str("date", date).
		Int("readings", len(readings)).
		Int("cities", len(summaries)).
		Msg("daily aggregation completed")

	return summaries, nil
}
