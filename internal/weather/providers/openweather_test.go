package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-monitor/internal/weather"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenWeatherClient, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewOpenWeatherClient(OpenWeatherConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		HTTP:    HTTPClientConfig{Client: srv.Client()},
		Logger:  zerolog.Nop(),
	})
	return c, &hits
}

func TestGeocode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, geocodePath, r.URL.Path)
		assert.Equal(t, "Delhi", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		fmt.Fprint(w, `[{"name":"Delhi","lat":28.6517,"lon":77.2219,"country":"IN"}]`)
	})

	got, err := c.Geocode(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, weather.Coordinates{Lat: 28.6517, Lon: 77.2219}, got)
}

func TestGeocodeNoResults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	_, err := c.Geocode(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, weather.ErrUpstream)
}

func TestGeocodeRejectsEmptyCity(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.Geocode(context.Background(), "  ")
	assert.Error(t, err)
	assert.Zero(t, hits.Load())
}

func TestCurrentConvertsKelvin(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, currentPath, r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("units"))
		fmt.Fprint(w, `{
			"dt": 1717250400,
			"weather": [{"main": "Haze", "description": "haze"}],
			"main": {"temp": 308.15, "feels_like": 311.15, "pressure": 1002, "humidity": 45},
			"rain": {"1h": 0.4},
			"clouds": {"all": 20}
		}`)
	})

	got, err := c.Current(context.Background(), weather.Coordinates{Lat: 28.65, Lon: 77.22})
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1717250400, 0).Unix(), got.Timestamp.Unix())
	assert.Equal(t, "Haze", got.Condition)
	assert.InDelta(t, 35.0, got.Temperature, 1e-9)
	assert.InDelta(t, 38.0, got.FeelsLike, 1e-9)
	assert.Equal(t, 1002.0, got.Pressure)
	assert.Equal(t, 45.0, got.Humidity)
	assert.Equal(t, 0.4, got.Rain)
	assert.Equal(t, 20.0, got.Clouds)
	assert.Empty(t, got.City)
}

func TestCurrentDefaultsMissingFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"weather": [{"main": "Clear"}],
			"main": {"temp": 300, "feels_like": 301, "pressure": 1010, "humidity": 30}
		}`)
	})
	fetchedAt := time.Date(2024, 6, 1, 14, 0, 0, 700, time.UTC)
	c.now = func() time.Time { return fetchedAt }

	got, err := c.Current(context.Background(), weather.Coordinates{})
	require.NoError(t, err)
	assert.Zero(t, got.Rain)
	assert.Zero(t, got.Clouds)
	assert.Equal(t, fetchedAt.Truncate(time.Second), got.Timestamp)
}

func TestCurrentMalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no weather conditions", `{"weather": [], "main": {"temp": 300}}`},
		{"no main block", `{"weather": [{"main": "Clear"}]}`},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			_, err := c.Current(context.Background(), weather.Coordinates{})
			assert.ErrorIs(t, err, weather.ErrUpstream)
		})
	}
}

func TestNonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})

			_, err := c.Current(context.Background(), weather.Coordinates{})
			assert.ErrorIs(t, err, weather.ErrUpstream)
			assert.Equal(t, int32(1), hits.Load(), "no retry")
		})
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Current(context.Background(), weather.Coordinates{})
		require.ErrorIs(t, err, weather.ErrUpstream)
	}
	require.Equal(t, int32(5), hits.Load())

	_, err := c.Current(context.Background(), weather.Coordinates{})
	assert.ErrorIs(t, err, weather.ErrUpstream)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(5), hits.Load())

	// Geocoding has its own circuit.
	_, err = c.Geocode(context.Background(), "Delhi")
	assert.NotErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(6), hits.Load())
}

func TestLimiterHonoursContext(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	c.httpCfg.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, c.httpCfg.Limiter.Allow()) // drain the burst

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Geocode(ctx, "Delhi")
	assert.ErrorIs(t, err, weather.ErrUpstream)
	assert.Zero(t, hits.Load())
}

func TestMissingAPIKey(t *testing.T) {
	c := NewOpenWeatherClient(OpenWeatherConfig{Logger: zerolog.Nop()})

	_, err := c.Geocode(context.Background(), "Delhi")
	assert.Error(t, err)
	_, err = c.Current(context.Background(), weather.Coordinates{})
	assert.Error(t, err)
}
