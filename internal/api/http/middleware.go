package httpapi

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog"
)

// RateGuard admits at most limit requests per client IP within each fixed
// window of length interval and answers 429 beyond that. Counts live in one
// process-wide map owned by the returned handler, so mount it once.
func RateGuard(limit int, interval time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        interval,
		LimiterMiddleware: limiter.FixedWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, retry later")
		},
	})
}

// CacheGeneration versions a ResponseCache. Bumping it makes every entry
// stored under an older generation unreachable.
type CacheGeneration struct {
	n atomic.Uint64
}

// Bump invalidates every entry cached so far.
func (g *CacheGeneration) Bump() {
	if g != nil {
		g.n.Add(1)
	}
}

func (g *CacheGeneration) current() uint64 {
	if g == nil {
		return 0
	}
	return g.n.Load()
}

// ResponseCache serves repeated GETs for the same URL from memory for ttl,
// or until gen is bumped. gen may be nil. A zero ttl disables caching.
func ResponseCache(ttl time.Duration, gen *CacheGeneration) fiber.Handler {
	if ttl <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return cache.New(cache.Config{
		Expiration: ttl,
		KeyGenerator: func(c *fiber.Ctx) string {
			return strconv.FormatUint(gen.current(), 10) + "|" + c.OriginalURL()
		},
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		requestID, _ := c.Locals("requestid").(string)

		event := log.Info()
		if status >= fiber.StatusInternalServerError {
			event = log.Error().Err(err)
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Int("bytes", len(c.Response().Body())).
			Dur("duration", time.Since(start)).
			Str("remote_addr", c.IP()).
			Str("user_agent", c.Get(fiber.HeaderUserAgent)).
			Msg("request completed")

		return err
	}
}
