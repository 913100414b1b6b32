package weather

import "errors"

var (
	// ErrUpstream marks a geocoding or fetch call that failed or returned no
	// usable data. The city is skipped until the next cycle.
	ErrUpstream = errors.New("transient upstream error")

	// ErrPersistence marks a failed store read or write.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidThresholds is returned when a threshold update is rejected.
	ErrInvalidThresholds = errors.New("invalid thresholds")
)
