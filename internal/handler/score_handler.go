package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// ScoreHandler serves individual student scores.
type ScoreHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewScoreHandler constructs the handler.
func NewScoreHandler(service service.ReportService, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		service: service,
		logger:  logger.With().Str("component", "score_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ScoreHandler) Register(router fiber.Router) {
	router.Get("/student/:student", h.studentScores)
	router.Get("/:assignment/:student", h.score)
}

func (h *ScoreHandler) score(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignment")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	score, err := h.service.Score(c.UserContext(), assignmentID, c.Params("student"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score retrieved", score)
}

func (h *ScoreHandler) studentScores(c *fiber.Ctx) error {
	scores, err := h.service.StudentScores(c.UserContext(), c.Params("student"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student scores retrieved", scores)
}

func (h *ScoreHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidStudentID):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrScoreNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("score lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
