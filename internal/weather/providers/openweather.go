package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-monitor/internal/weather"
)

const (
	// DefaultOpenWeatherBaseURL is the OpenWeatherMap API root.
	DefaultOpenWeatherBaseURL = "https://api.openweathermap.org"

	geocodePath = "/geo/1.0/direct"
	currentPath = "/data/2.5/weather"
)

// OpenWeatherConfig holds configuration for the OpenWeatherMap client.
type OpenWeatherConfig struct {
	// APIKey is the OpenWeatherMap credential (required).
	APIKey string

	// BaseURL overrides DefaultOpenWeatherBaseURL.
	BaseURL string

	HTTP   HTTPClientConfig
	Logger zerolog.Logger
}

// OpenWeatherClient implements weather.Geocoder and weather.Fetcher against
// OpenWeatherMap. Geocoding and current weather have separate circuits so a
// failing endpoint does not block the other.
type OpenWeatherClient struct {
	apiKey     string
	baseURL    string
	httpCfg    HTTPClientConfig
	geoCircuit *gobreaker.CircuitBreaker
	wxCircuit  *gobreaker.CircuitBreaker
	logger     zerolog.Logger
	now        func() time.Time
}

// NewOpenWeatherClient creates a new OpenWeatherMap client.
func NewOpenWeatherClient(cfg OpenWeatherConfig) *OpenWeatherClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	if cfg.HTTP.Client == nil {
		cfg.HTTP.Client = &http.Client{Timeout: 10 * time.Second}
	}

	return &OpenWeatherClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpCfg:    cfg.HTTP,
		geoCircuit: newCircuitBreaker("openweather-geocode"),
		wxCircuit:  newCircuitBreaker("openweather-current"),
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Geocode resolves city through the direct geocoding endpoint, taking the
// first match.
func (p *OpenWeatherClient) Geocode(ctx context.Context, city string) (weather.Coordinates, error) {
	if p.apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("openweather api key is not configured")
	}
	if strings.TrimSpace(city) == "" {
		return weather.Coordinates{}, fmt.Errorf("city must not be empty")
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("limit", "1")
	values.Set("appid", p.apiKey)

	req, err := http.NewRequest(http.MethodGet, p.baseURL+geocodePath+"?"+values.Encode(), http.NoBody)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.geoCircuit, req)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocoding %q: %w", city, err)
	}
	defer resp.Body.Close()

	var payload []struct {
		Name    string  `json:"name"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		Country string  `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: decoding geocoding response: %v", weather.ErrUpstream, err)
	}
	if len(payload) == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: no geocoding results for %q", weather.ErrUpstream, city)
	}

	p.logger.Debug().
		Str("city", city).
		Str("match", payload[0].Name).
		Str("country", payload[0].Country).
		Msg("geocoded city")

	return weather.Coordinates{Lat: payload[0].Lat, Lon: payload[0].Lon}, nil
}

// Current fetches the current weather at the given point. The upstream
// reports temperatures in Kelvin; they are converted to Celsius here.
func (p *OpenWeatherClient) Current(ctx context.Context, at weather.Coordinates) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", at.Lat))
	values.Set("lon", fmt.Sprintf("%f", at.Lon))
	values.Set("appid", p.apiKey)

	req, err := http.NewRequest(http.MethodGet, p.baseURL+currentPath+"?"+values.Encode(), http.NoBody)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.wxCircuit, req)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("fetching current weather: %w", err)
	}
	defer resp.Body.Close()

	var payload currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("%w: decoding weather response: %v", weather.ErrUpstream, err)
	}

	return p.toReading(&payload)
}

func (p *OpenWeatherClient) toReading(resp *currentWeatherResponse) (weather.Reading, error) {
	if resp.Main == nil {
		return weather.Reading{}, fmt.Errorf("%w: malformed payload: missing main block", weather.ErrUpstream)
	}
	if len(resp.Weather) == 0 {
		return weather.Reading{}, fmt.Errorf("%w: malformed payload: missing weather conditions", weather.ErrUpstream)
	}

	ts := p.now()
	if resp.Dt != 0 {
		ts = time.Unix(resp.Dt, 0)
	}

	var rain, clouds float64
	if resp.Rain != nil && resp.Rain.OneH != nil {
		rain = *resp.Rain.OneH
	}
	if resp.Clouds != nil && resp.Clouds.All != nil {
		clouds = *resp.Clouds.All
	}

	return weather.Reading{
		Timestamp:   ts.Truncate(time.Second),
		Condition:   resp.Weather[0].Main,
		Temperature: weather.KelvinToCelsius(resp.Main.Temp),
		FeelsLike:   weather.KelvinToCelsius(resp.Main.FeelsLike),
		Pressure:    resp.Main.Pressure,
		Humidity:    resp.Main.Humidity,
		Rain:        rain,
		Clouds:      clouds,
	}, nil
}

// OpenWeatherMap current weather response, standard (Kelvin) units.
type currentWeatherResponse struct {
	Dt      int64 `json:"dt"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Rain *struct {
		OneH *float64 `json:"1h"`
	} `json:"rain"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Name string `json:"name"`
}
