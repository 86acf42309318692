package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/middleware"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	buf.Reset()
	return entry
}

func TestObservabilityLogsGradingIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Use(middleware.Observability(zerolog.New(&buf)))
	app.Get("/api/v1/evaluations/:batch", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/assignments/:id/reference-run", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusUnprocessableEntity)
	})
	app.Get("/api/v1/scores/:assignment/:student", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/evaluations/b-42", nil)
	req.Header.Set(middleware.CorrelationHeader, "cid-1")
	_, err := app.Test(req, -1)
	require.NoError(t, err)
	entry := decodeLogLine(t, &buf)
	require.Equal(t, "evaluations", entry["resource"])
	require.Equal(t, "/api/v1/evaluations/:batch", entry["route"])
	require.Equal(t, "b-42", entry["batch_id"])
	require.Equal(t, "cid-1", entry["correlation_id"])
	require.Equal(t, "info", entry["level"])

	_, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/api/v1/assignments/7/reference-run", nil), -1)
	require.NoError(t, err)
	entry = decodeLogLine(t, &buf)
	require.Equal(t, "assignments", entry["resource"])
	require.Equal(t, "7", entry["assignment_id"])
	require.Equal(t, "warn", entry["level"])

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/scores/3/20220602074", nil), -1)
	require.NoError(t, err)
	entry = decodeLogLine(t, &buf)
	require.Equal(t, "3", entry["assignment_id"])
	require.Equal(t, "20220602074", entry["student_id"])
}

func TestObservabilityReportsUnmatchedRoutes(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(middleware.Observability(zerolog.New(&buf)))
	app.Get("/outside", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/nothing-here", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	entry := decodeLogLine(t, &buf)
	require.Equal(t, "unknown", entry["resource"])
	require.EqualValues(t, fiber.StatusNotFound, entry["status"])

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/outside", nil), -1)
	require.NoError(t, err)
	require.Zero(t, buf.Len())
}

func TestRegisterWritesAccessLogWithCorrelationID(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.Nop()
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: true, Output: &out, AllowOrigins: "https://lab.example.edu"})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/health", nil)
	req.Header.Set(middleware.CorrelationHeader, "cid-9")
	req.Header.Set(fiber.HeaderOrigin, "https://lab.example.edu")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "https://lab.example.edu", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	require.Contains(t, out.String(), "cid=cid-9")
}
