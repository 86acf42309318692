package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type stubEvaluationService struct {
	report   dto.EvaluationReport
	accepted dto.BatchAccepted
	progress dto.BatchProgress
	err      error
	requests []dto.EvaluationRequest
	canceled []string
}

func (s *stubEvaluationService) Evaluate(_ context.Context, req dto.EvaluationRequest) (dto.EvaluationReport, error) {
	s.requests = append(s.requests, req)
	return s.report, s.err
}

func (s *stubEvaluationService) Start(_ context.Context, req dto.EvaluationRequest) (dto.BatchAccepted, error) {
	s.requests = append(s.requests, req)
	return s.accepted, s.err
}

func (s *stubEvaluationService) Cancel(batchID string) error {
	if s.err != nil {
		return s.err
	}
	s.canceled = append(s.canceled, batchID)
	return nil
}

func (s *stubEvaluationService) Progress(_ context.Context, batchID string) (dto.BatchProgress, error) {
	if s.err != nil {
		return dto.BatchProgress{}, s.err
	}
	return s.progress, nil
}

func (s *stubEvaluationService) Close() {}

type stubReferenceService struct {
	response dto.ReferenceRunResponse
	err      error
	accepted map[uint]string
}

func (s *stubReferenceService) Run(_ context.Context, assignmentID uint, _ dto.ReferenceRunRequest) (dto.ReferenceRunResponse, error) {
	if s.err != nil {
		return dto.ReferenceRunResponse{}, s.err
	}
	response := s.response
	response.AssignmentID = assignmentID
	return response, nil
}

func (s *stubReferenceService) Accept(_ context.Context, assignmentID uint, output string) error {
	if s.err != nil {
		return s.err
	}
	if s.accepted == nil {
		s.accepted = map[uint]string{}
	}
	s.accepted[assignmentID] = output
	return nil
}

type stubReportService struct {
	report dto.ScoreReport
}

func (s *stubReportService) Scores(context.Context) (dto.ScoreReport, error) {
	return s.report, nil
}

func (s *stubReportService) Score(context.Context, uint, string) (dto.ScoreResponse, error) {
	return dto.ScoreResponse{}, service.ErrScoreNotFound
}

func (s *stubReportService) StudentScores(context.Context, string) ([]dto.ScoreResponse, error) {
	return []dto.ScoreResponse{}, nil
}

func setupApp(t *testing.T, deps router.Dependencies) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Use(middleware.Observability(zerolog.New(io.Discard)))
	router.Register(app, config.Config{AppName: "Test Grader", AppEnv: "test", SandboxBackend: config.SandboxBackendProcess}, deps)
	return app
}

func newConfigurationHandler(t *testing.T) *handler.ConfigurationHandler {
	t.Helper()

	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	svc := service.NewConfigurationService(repository.NewConfigurationRepository(db), validate, logger)
	return handler.NewConfigurationHandler(svc, logger)
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	switch value := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(value)
	default:
		encoded, err := json.Marshal(value)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload envelope
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}
