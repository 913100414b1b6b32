package httpapi

import (
	"bytes"
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-monitor/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. Every /api/v1
// route sits behind one shared rate guard.
func RegisterRoutes(app *fiber.App, service *weather.Service, opts Options) {
	opts = opts.withDefaults()
	h := &handlers{service: service, logger: opts.Logger, summariesGen: &CacheGeneration{}}

	v1 := app.Group("/api/v1", RateGuard(opts.RateLimitMax, opts.RateLimitWindow))

	v1.Get("/alerts", h.listAlerts)
	v1.Get("/alerts/html", h.alertsHTML)
	// An on-demand aggregation drops the cached summaries.
	v1.Get("/summaries", ResponseCache(opts.SummariesTTL, h.summariesGen), h.listSummaries)
	v1.Post("/summaries/aggregate", h.aggregate)
	v1.Get("/readings", ResponseCache(opts.ReadingsTTL, nil), h.listReadings)
	v1.Get("/thresholds", h.getThresholds)
	v1.Put("/thresholds", h.putThresholds)
}

type handlers struct {
	service      *weather.Service
	logger       zerolog.Logger
	summariesGen *CacheGeneration
}

// internalError logs err and hides it from the client.
func (h *handlers) internalError(c *fiber.Ctx, err error, msg string) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg(msg)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

func (h *handlers) listAlerts(c *fiber.Ctx) error {
	alerts, err := h.service.Alerts(c.UserContext())
	if err != nil {
		return h.internalError(c, err, "failed to load alerts")
	}
	if alerts == nil {
		alerts = []weather.AlertEvent{}
	}
	return c.JSON(alerts)
}

var alertsTemplate = template.Must(template.New("alerts").Parse(`<!DOCTYPE html>
<html>
<head><title>Weather alerts</title></head>
<body>
<h1>Weather alerts</h1>
{{if .}}<table border="1">
<thead><tr><th>Time</th><th>City</th><th>Trigger</th><th>Reason</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td><td>{{.City}}</td><td>{{.Trigger}}</td><td>{{.Reason}}</td></tr>
{{end}}</tbody>
</table>{{else}}<p>No alerts recorded.</p>{{end}}
</body>
</html>
`))

func (h *handlers) alertsHTML(c *fiber.Ctx) error {
	alerts, err := h.service.Alerts(c.UserContext())
	if err != nil {
		return h.internalError(c, err, "failed to load alerts")
	}

	var buf bytes.Buffer
	if err := alertsTemplate.Execute(&buf, alerts); err != nil {
		return h.internalError(c, err, "failed to render alerts")
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func (h *handlers) listSummaries(c *fiber.Ctx) error {
	summaries, err := h.service.Summaries(c.UserContext())
	if err != nil {
		return h.internalError(c, err, "failed to load daily summaries")
	}
	if summaries == nil {
		summaries = []weather.DailySummary{}
	}
	return c.JSON(summaries)
}

// aggregate runs the daily rollup on demand for ?date=YYYY-MM-DD, or for
// today when date is absent.
func (h *handlers) aggregate(c *fiber.Ctx) error {
	var (
		summaries []weather.DailySummary
		err       error
	)

	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		day, perr := time.ParseInLocation(weather.DateLayout, raw, h.service.Location())
		if perr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid date; use YYYY-MM-DD")
		}
		summaries, err = h.service.AggregateDay(c.UserContext(), day)
	} else {
		summaries, err = h.service.AggregateToday(c.UserContext())
	}
	if err != nil {
		return h.internalError(c, err, "daily aggregation failed")
	}
	h.summariesGen.Bump()
	if summaries == nil {
		summaries = []weather.DailySummary{}
	}
	return c.JSON(summaries)
}

// listReadings returns every retained reading, or with ?city= only that
// city's readings for today.
func (h *handlers) listReadings(c *fiber.Ctx) error {
	var (
		readings []weather.Reading
		err      error
	)
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		readings, err = h.service.ReadingsToday(c.UserContext(), city)
	} else {
		readings, err = h.service.Readings(c.UserContext())
	}
	if err != nil {
		return h.internalError(c, err, "failed to load readings")
	}
	if readings == nil {
		readings = []weather.Reading{}
	}
	return c.JSON(readings)
}

func (h *handlers) getThresholds(c *fiber.Ctx) error {
	return c.JSON(h.service.Thresholds().Get())
}

// thresholdsRequest is the body of PUT /thresholds. All six ranges are
// required and each must hold exactly [min, max].
type thresholdsRequest struct {
	Temperature []float64 `json:"temp" validate:"required,len=2"`
	FeelsLike   []float64 `json:"feels_like" validate:"required,len=2"`
	Pressure    []float64 `json:"pressure" validate:"required,len=2"`
	Humidity    []float64 `json:"humidity" validate:"required,len=2"`
	Rain        []float64 `json:"rain" validate:"required,len=2"`
	Clouds      []float64 `json:"clouds" validate:"required,len=2"`
}

func (r thresholdsRequest) toConfig() weather.ThresholdConfig {
	return weather.ThresholdConfig{
		Temperature: weather.Range{r.Temperature[0], r.Temperature[1]},
		FeelsLike:   weather.Range{r.FeelsLike[0], r.FeelsLike[1]},
		Pressure:    weather.Range{r.Pressure[0], r.Pressure[1]},
		Humidity:    weather.Range{r.Humidity[0], r.Humidity[1]},
		Rain:        weather.Range{r.Rain[0], r.Rain[1]},
		Clouds:      weather.Range{r.Clouds[0], r.Clouds[1]},
	}
}

func (h *handlers) putThresholds(c *fiber.Ctx) error {
	var req thresholdsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	cfg := req.toConfig()
	if err := h.service.Thresholds().Update(cfg); err != nil {
		if errors.Is(err, weather.ErrInvalidThresholds) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return h.internalError(c, err, "failed to update thresholds")
	}

	h.logger.Info().Interface("thresholds", cfg).Msg("thresholds updated")
	return c.JSON(cfg)
}
