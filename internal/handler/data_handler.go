package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// DataHandler exports and imports application data.
type DataHandler struct {
	service service.TransferService
	logger  zerolog.Logger
}

// NewDataHandler constructs the handler.
func NewDataHandler(service service.TransferService, logger zerolog.Logger) *DataHandler {
	return &DataHandler{
		service: service,
		logger:  logger.With().Str("component", "data_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *DataHandler) Register(router fiber.Router) {
	router.Get("/export", h.export)
	router.Post("/import", h.importDocument)
}

func (h *DataHandler) export(c *fiber.Ctx) error {
	document, err := h.service.Export(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	c.Attachment("grader-data.json")
	return c.JSON(document)
}

func (h *DataHandler) importDocument(c *fiber.Ctx) error {
	result, err := h.service.Import(c.UserContext(), c.Body())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "application data imported", result)
}

func (h *DataHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidDataImport):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("data transfer failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
