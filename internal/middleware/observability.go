package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/observability"
)

const apiPrefix = "/api/v1/"

// routeParams are the grading identifiers copied from matched routes onto the request log.
var routeParams = map[string]string{
	"batch":      "batch_id",
	"assignment": "assignment_id",
	"student":    "student_id",
	"language":   "language",
}

// Observability records per-resource request metrics and logs every API
// request with the grading identifiers found in its route.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		if !strings.HasPrefix(c.Path(), apiPrefix) {
			return err
		}

		route := routeTemplate(c)
		resource := resourceOf(c.Path())
		method := c.Method()
		status := responseStatus(c, err)
		statusLabel := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(method, resource, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(method, resource).Observe(duration.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, resource, statusLabel).Inc()
		}

		fields := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("resource", resource).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Dur("latency", duration).
			Str("latency_bucket", latencyBucket(duration))
		for param, field := range routeParams {
			if value := c.Params(param); value != "" {
				fields = fields.Str(field, value)
			}
		}
		// Single assignment routes name the assignment :id.
		if resource == "assignments" {
			if value := c.Params("id"); value != "" {
				fields = fields.Str("assignment_id", value)
			}
		}
		requestLog := fields.Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLog.Error().Msg("request failed")
		case status >= fiber.StatusBadRequest:
			requestLog.Warn().Msg("request completed with client error")
		case resource == "health":
			requestLog.Debug().Msg("health checked")
		default:
			requestLog.Info().Msg("request completed")
		}

		return err
	}
}

// responseStatus accounts for errors the fiber error handler has not yet
// written to the response.
func responseStatus(c *fiber.Ctx, err error) int {
	var fiberErr *fiber.Error
	switch {
	case err == nil:
		return c.Response().StatusCode()
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return fiber.StatusInternalServerError
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

// resourceOf maps /api/v1/<resource>/... to its resource name, falling back
// to "unknown" so unmatched paths cannot grow the label set.
func resourceOf(path string) string {
	rest := strings.TrimPrefix(path, apiPrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	switch rest {
	case "evaluations", "configurations", "assignments", "reports", "scores", "data", "health":
		return rest
	default:
		return "unknown"
	}
}

// latencyBucket is coarse because synchronous evaluations run for minutes.
func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= time.Second:
		return "<=1s"
	case duration <= 10*time.Second:
		return "<=10s"
	case duration <= time.Minute:
		return "<=1m"
	default:
		return ">1m"
	}
}
