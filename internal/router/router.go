package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler    *handler.EvaluationHandler
	ConfigurationHandler *handler.ConfigurationHandler
	ReferenceHandler     *handler.ReferenceHandler
	ReportHandler        *handler.ReportHandler
	ScoreHandler         *handler.ScoreHandler
	DataHandler          *handler.DataHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api.Group("/evaluations"))
	}

	if deps.ConfigurationHandler != nil {
		deps.ConfigurationHandler.Register(api.Group("/configurations"))
	}

	if deps.ReferenceHandler != nil {
		deps.ReferenceHandler.Register(api.Group("/assignments"))
	}

	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(api.Group("/reports"))
	}

	if deps.ScoreHandler != nil {
		deps.ScoreHandler.Register(api.Group("/scores"))
	}

	if deps.DataHandler != nil {
		deps.DataHandler.Register(api.Group("/data"))
	}
}
