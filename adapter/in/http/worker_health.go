package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker is anything that can be pinged: a database, redis, mongo.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// BreakerReporter exposes circuit breaker state for readiness output.
type BreakerReporter interface {
	State() string
}

// StatsFunc returns a snapshot rendered under "stats" on /health.
type StatsFunc func() map[string]any

type HealthHandler struct {
	checks   map[string]HealthChecker
	breakers map[string]BreakerReporter
	stats    map[string]StatsFunc
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		breakers: make(map[string]BreakerReporter),
		stats:    make(map[string]StatsFunc),
	}
}

// AddCheck registers a dependency that must answer for /ready to pass.
func (h *HealthHandler) AddCheck(name string, c HealthChecker) *HealthHandler {
	h.checks[name] = c
	return h
}

// AddBreaker reports a breaker's state on /ready. An open breaker does not
// fail readiness: the pipeline defers work until it closes.
func (h *HealthHandler) AddBreaker(name string, b BreakerReporter) *HealthHandler {
	h.breakers[name] = b
	return h
}

// AddStats adds a snapshot (pool usage, call latency) to /health.
func (h *HealthHandler) AddStats(name string, fn StatsFunc) *HealthHandler {
	h.stats[name] = fn
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(h.stats) > 0 {
		stats := make(map[string]any, len(h.stats))
		for name, fn := range h.stats {
			stats[name] = fn()
		}
		body["stats"] = stats
	}
	return c.JSON(body)
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true

	for name, checker := range h.checks {
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	breakers := make(map[string]string, len(h.breakers))
	for name, b := range h.breakers {
		breakers[name] = b.State()
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"breakers":  breakers,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
