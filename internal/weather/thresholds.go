package weather

import (
	"fmt"
	"sync"
)

// Range is an inclusive [min, max] acceptable range. It encodes as a
// two-element JSON array.
type Range [2]float64

// Min returns the lower bound.
func (r Range) Min() float64 { return r[0] }

// Max returns the upper bound.
func (r Range) Max() float64 { return r[1] }

// Contains reports whether v lies inside the range, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r[0] && v <= r[1]
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", formatValue(r[0]), formatValue(r[1]))
}

// ThresholdConfig holds the acceptable range of every monitored metric.
type ThresholdConfig struct {
	Temperature Range `json:"temp"`
	FeelsLike   Range `json:"feels_like"`
	Pressure    Range `json:"pressure"`
	Humidity    Range `json:"humidity"`
	Rain        Range `json:"rain"`
	Clouds      Range `json:"clouds"`
}

// DefaultThresholds returns the ranges used until the first update.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		Temperature: Range{0, 100},
		FeelsLike:   Range{0, 100},
		Pressure:    Range{950, 1050},
		Humidity:    Range{0, 100},
		Rain:        Range{0, 100},
		Clouds:      Range{0, 100},
	}
}

// Validate rejects any range whose min exceeds its max.
func (c ThresholdConfig) Validate() error {
	for _, m := range metrics {
		r := m.rng(c)
		if r.Min() > r.Max() {
			return fmt.Errorf("%w: %s min %s is greater than max %s",
				ErrInvalidThresholds, m.label, formatValue(r.Min()), formatValue(r.Max()))
		}
	}
	return nil
}

// Thresholds is the shared, mutable threshold configuration. Readers get a
// copy; Update swaps the whole configuration under the write lock so no
// reader observes a partial update.
type Thresholds struct {
	mu  sync.RWMutex
	cfg ThresholdConfig
}

// NewThresholds creates a Thresholds holding initial.
func NewThresholds(initial ThresholdConfig) *Thresholds {
	return &Thresholds{cfg: initial}
}

// Get returns the current configuration.
func (t *Thresholds) Get() ThresholdConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Update replaces all six ranges at once.
func (t *Thresholds) Update(cfg ThresholdConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
	return nil
}
