package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/toolchain"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// ConfigurationHandler manages registered toolchains.
type ConfigurationHandler struct {
	service service.ConfigurationService
	logger  zerolog.Logger
}

// NewConfigurationHandler constructs the handler.
func NewConfigurationHandler(service service.ConfigurationService, logger zerolog.Logger) *ConfigurationHandler {
	return &ConfigurationHandler{
		service: service,
		logger:  logger.With().Str("component", "configuration_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ConfigurationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/languages", h.languages)
	router.Get("/export", h.export)
	router.Post("/import", h.importDocument)
	router.Get("/suggest/:language", h.suggest)
	router.Delete("/:id", h.delete)
}

func (h *ConfigurationHandler) list(c *fiber.Ctx) error {
	configurations, err := h.service.List(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "configurations retrieved", configurations)
}

func (h *ConfigurationHandler) create(c *fiber.Ctx) error {
	var payload dto.ConfigurationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	// Validated by the service after the language name is normalized.
	configuration, created, err := h.service.Register(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	if !created {
		return utils.SendSuccess(c, "configuration already registered", configuration)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "configuration registered", configuration)
}

func (h *ConfigurationHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "configuration deleted", nil)
}

func (h *ConfigurationHandler) suggest(c *fiber.Ctx) error {
	suggestion, err := h.service.Suggest(c.UserContext(), c.Params("language"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "toolchain found", suggestion)
}

func (h *ConfigurationHandler) languages(c *fiber.Ctx) error {
	languages, err := h.service.Languages(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "supported languages retrieved", languages)
}

// export returns the bare document so it can be fed back into import.
func (h *ConfigurationHandler) export(c *fiber.Ctx) error {
	document, err := h.service.Export(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	c.Attachment("grader-configurations.json")
	return c.JSON(document)
}

func (h *ConfigurationHandler) importDocument(c *fiber.Ctx) error {
	result, err := h.service.Import(c.UserContext(), c.Body())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "configurations imported", result)
}

func (h *ConfigurationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrConfigurationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, toolchain.ErrToolchainNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, toolchain.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "language not supported")
	case errors.Is(err, service.ErrInvalidConfigurationImport):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("configuration operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
