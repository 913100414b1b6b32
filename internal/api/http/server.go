package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// AppName identifies the service in responses.
const AppName = "weather-monitor"

// Options configures the HTTP surface.
type Options struct {
	// Read-side rate guard. Defaults to 5 requests per 60 seconds.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Response cache lifetimes. Zero disables caching for that resource.
	SummariesTTL time.Duration
	ReadingsTTL  time.Duration

	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.RateLimitMax <= 0 {
		o.RateLimitMax = 5
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = 60 * time.Second
	}
	return o
}

// NewApp builds the Fiber app with global middleware, the health endpoint and
// every API route.
func NewApp(service *weather.Service, opts Options) *fiber.App {
	opts = opts.withDefaults()

	app := fiber.New(fiber.Config{
		AppName:               AppName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestid.New())
	app.Use(RequestLogger(opts.Logger))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": AppName,
		})
	})

	RegisterRoutes(app, service, opts)
	return app
}

// errorHandler renders every error as {"error": true, "message": ...}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
