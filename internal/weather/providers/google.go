package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// GoogleGeocoder implements weather.Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey  string
	country string
	lookup  func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder creates a GoogleGeocoder. country, if set, narrows every
// lookup (for example "India").
//
// The geocoder package keeps its key in a package variable, which is set
// here once; a process should hold a single GoogleGeocoder.
func NewGoogleGeocoder(apiKey, country string) *GoogleGeocoder {
	if apiKey != "" {
		geocoder.ApiKey = apiKey
	}
	return &GoogleGeocoder{
		apiKey:  apiKey,
		country: country,
		lookup:  geocoder.Geocoding,
	}
}

type lookupResult struct {
	loc geocoder.Location
	err error
}

// Geocode resolves city. The underlying client takes no context and has no
// timeout, so the lookup runs in its own goroutine and is abandoned when ctx
// is done.
func (g *GoogleGeocoder) Geocode(ctx context.Context, city string) (weather.Coordinates, error) {
	if g.apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("google geocoder api key is not configured")
	}
	if strings.TrimSpace(city) == "" {
		return weather.Coordinates{}, fmt.Errorf("city must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: %w", weather.ErrUpstream, err)
	}

	done := make(chan lookupResult, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{City: city, Country: g.country})
		done <- lookupResult{loc: loc, err: err}
	}()

	var res lookupResult
	select {
	case <-ctx.Done():
		return weather.Coordinates{}, fmt.Errorf("%w: google geocoding %q: %w", weather.ErrUpstream, city, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: google geocoding %q: %v", weather.ErrUpstream, city, res.err)
	}
	if res.loc.Latitude == 0 && res.loc.Longitude == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: no geocoding results for %q", weather.ErrUpstream, city)
	}

	return weather.Coordinates{Lat: res.loc.Latitude, Lon: res.loc.Longitude}, nil
}
