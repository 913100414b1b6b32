package weather

import "math"

// kelvinOffset is the difference between the Kelvin and Celsius scales.
const kelvinOffset = 273.15

// KelvinToCelsius converts an upstream Kelvin temperature.
func KelvinToCelsius(k float64) float64 {
	return k - kelvinOffset
}

// CelsiusToKelvin is the inverse of KelvinToCelsius.
func CelsiusToKelvin(c float64) float64 {
	return c + kelvinOffset
}

// round2 rounds to two decimals for human-readable output.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
