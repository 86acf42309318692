package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// ReferenceHandler runs reference solutions and records expected output.
type ReferenceHandler struct {
	service   service.ReferenceService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(service service.ReferenceService, validator *validator.Validate, logger zerolog.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "reference_handler").Logger(),
	}
}

// Register wires the handler endpoints into the assignments group.
func (h *ReferenceHandler) Register(router fiber.Router) {
	router.Post("/:id/reference-run", h.run)
	router.Post("/:id/expected-output", h.accept)
}

func (h *ReferenceHandler) run(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ReferenceRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	response, err := h.service.Run(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "reference run finished", response)
}

func (h *ReferenceHandler) accept(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExpectedOutputRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Accept(c.UserContext(), id, payload.Output); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "expected output stored", fiber.Map{"assignment_id": id})
}

func (h *ReferenceHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrReferenceArchiveMissing), errors.Is(err, service.ErrExpectedOutputMissing):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("reference operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
