package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
)

func setupReferenceApp(t *testing.T, svc *stubReferenceService, reports *stubReportService) *fiber.App {
	t.Helper()
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	deps := router.Dependencies{ReferenceHandler: handler.NewReferenceHandler(svc, validate, logger)}
	if reports != nil {
		deps.ReportHandler = handler.NewReportHandler(reports, logger)
	}
	return setupApp(t, deps)
}

func TestReferenceHandlerRun(t *testing.T) {
	svc := &stubReferenceService{response: dto.ReferenceRunResponse{Status: "success", Output: "Hello, world!\n", Language: "c", EntryPoint: "main.c"}}
	app := setupReferenceApp(t, svc, nil)

	resp, payload := doRequest(t, app, http.MethodPost, "/api/v1/assignments/3/reference-run", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var run dto.ReferenceRunResponse
	require.NoError(t, json.Unmarshal(payload.Data, &run))
	require.Equal(t, uint(3), run.AssignmentID)
	require.Equal(t, "Hello, world!\n", run.Output)
}

func TestReferenceHandlerMapsErrors(t *testing.T) {
	resp, _ := doRequest(t, setupReferenceApp(t, &stubReferenceService{err: service.ErrAssignmentNotFound}, nil), http.MethodPost, "/api/v1/assignments/3/reference-run", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, setupReferenceApp(t, &stubReferenceService{err: service.ErrReferenceArchiveMissing}, nil), http.MethodPost, "/api/v1/assignments/3/reference-run", nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doRequest(t, setupReferenceApp(t, &stubReferenceService{}, nil), http.MethodPost, "/api/v1/assignments/0/reference-run", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReferenceHandlerAcceptStoresOutput(t *testing.T) {
	svc := &stubReferenceService{}
	app := setupReferenceApp(t, svc, nil)

	resp, _ := doRequest(t, app, http.MethodPost, "/api/v1/assignments/5/expected-output", dto.ExpectedOutputRequest{Output: "42\n"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "42\n", svc.accepted[5])

	resp, _ = doRequest(t, app, http.MethodPost, "/api/v1/assignments/5/expected-output", dto.ExpectedOutputRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReportHandlerScores(t *testing.T) {
	reports := &stubReportService{report: dto.ScoreReport{Evaluated: 4, Passed: 3, PassRate: 75}}
	app := setupReferenceApp(t, &stubReferenceService{}, reports)

	resp, payload := doRequest(t, app, http.MethodGet, "/api/v1/reports/scores", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report dto.ScoreReport
	require.NoError(t, json.Unmarshal(payload.Data, &report))
	require.Equal(t, 4, report.Evaluated)
	require.InDelta(t, 75.0, report.PassRate, 0.001)
}
