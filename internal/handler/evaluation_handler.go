package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// EvaluationHandler exposes batch grading endpoints.
type EvaluationHandler struct {
	service   service.EvaluationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, validator *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("", h.evaluate)
	router.Get("/:batch", h.progress)
	router.Delete("/:batch", h.cancel)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if c.QueryBool("async") {
		accepted, err := h.service.Start(c.UserContext(), payload)
		if err != nil {
			return h.handleError(c, err)
		}
		requestLogger(h.logger, c).Info().Str("batch_id", accepted.BatchID).Msg("evaluation batch accepted")
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "evaluation started", accepted)
	}

	report, err := h.service.Evaluate(c.UserContext(), payload)
	if errors.Is(err, context.Canceled) && report.BatchID != "" {
		return utils.SendErrorWithData(c, fiber.StatusRequestTimeout, "evaluation cancelled", report)
	}
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation completed", report)
}

func (h *EvaluationHandler) progress(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batch"))
	if batchID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "batch id required")
	}

	progress, err := h.service.Progress(c.UserContext(), batchID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "batch progress retrieved", progress)
}

func (h *EvaluationHandler) cancel(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batch"))
	if batchID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "batch id required")
	}

	if err := h.service.Cancel(batchID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "batch cancellation requested", fiber.Map{"batch_id": batchID})
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound), errors.Is(err, service.ErrBatchNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubmissionsUnavailable):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled):
		return utils.SendError(c, fiber.StatusRequestTimeout, "evaluation cancelled")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("evaluation operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
