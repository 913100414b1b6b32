package weather

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Alert trigger names, one per monitored metric.
const (
	TriggerTemperature = "Temperature"
	TriggerFeelsLike   = "Feels Like"
	TriggerPressure    = "Pressure"
	TriggerHumidity    = "Humidity"
	TriggerRain        = "Rain"
	TriggerClouds      = "Clouds"
)

// metric binds a reading field to its threshold range. label names it in
// alert reasons.
type metric struct {
	label   string
	trigger string
	value   func(Reading) float64
	rng     func(ThresholdConfig) Range
}

// metrics is evaluated in this order.
var metrics = []metric{
	{"temp", TriggerTemperature,
		func(r Reading) float64 { return r.Temperature },
		func(c ThresholdConfig) Range { return c.Temperature }},
	{"feels like", TriggerFeelsLike,
		func(r Reading) float64 { return r.FeelsLike },
		func(c ThresholdConfig) Range { return c.FeelsLike }},
	{"pressure", TriggerPressure,
		func(r Reading) float64 { return r.Pressure },
		func(c ThresholdConfig) Range { return c.Pressure }},
	{"humidity", TriggerHumidity,
		func(r Reading) float64 { return r.Humidity },
		func(c ThresholdConfig) Range { return c.Humidity }},
	{"rain", TriggerRain,
		func(r Reading) float64 { return r.Rain },
		func(c ThresholdConfig) Range { return c.Rain }},
	{"clouds", TriggerClouds,
		func(r Reading) float64 { return r.Clouds },
		func(c ThresholdConfig) Range { return c.Clouds }},
}

// CheckThresholds returns one AlertEvent per metric of r outside its range in
// cfg. Every metric is checked; violations are never combined.
func CheckThresholds(r Reading, cfg ThresholdConfig) []AlertEvent {
	var events []AlertEvent
	for _, m := range metrics {
		v := m.value(r)
		rng := m.rng(cfg)
		if rng.Contains(v) {
			continue
		}
		events = append(events, AlertEvent{
			ID:        uuid.NewString(),
			Timestamp: r.Timestamp,
			City:      r.City,
			Trigger:   m.trigger,
			Reason:    fmt.Sprintf("Found %s: %s but threshold is %s", m.label, formatValue(v), rng),
		})
	}
	return events
}

func formatValue(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

// Evaluator checks readings against the shared thresholds and persists
// every resulting alert.
type Evaluator struct {
	thresholds *Thresholds
	alerts     AlertStore
	logger     zerolog.Logger
}

// NewEvaluator creates an Evaluator reading from thresholds and writing to alerts.
func NewEvaluator(thresholds *Thresholds, alerts AlertStore, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		alerts:     alerts,
		logger:     logger,
	}
}

// Evaluate checks r against the current configuration and stores each alert
// as it is produced. A failed write does not stop the remaining ones; all
// write failures are returned together.
func (e *Evaluator) Evaluate(ctx context.Context, r Reading) ([]AlertEvent, error) {
	events := CheckThresholds(r, e.thresholds.Get())

	var errs []error
	stored := make([]AlertEvent, 0, len(events))
	for _, ev := range events {
		if err := e.alerts.AppendAlert(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("store %s alert: %w", ev.Trigger, err))
			continue
		}
		stored = append(stored, ev)
		e.logger.Warn().
			Str("city", ev.City).
			Str("trigger", ev.Trigger).
			Str("reason", ev.Reason).
			Msg("threshold exceeded")
	}

	if len(errs) > 0 {
		return stored, fmt.Errorf("%w: %w", ErrPersistence, errors.Join(errs...))
	}
	return stored, nil
}
