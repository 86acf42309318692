package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/router"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grader HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("port", "", "HTTP listen port (overrides GRADER_APP_PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.AppPort = port
	}

	app, err := newApplication(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	server := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(server, middleware.Config{
		Logger:       &app.logger,
		AllowOrigins: cfg.CORSOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(server, cfg, router.Dependencies{
		EvaluationHandler:    handler.NewEvaluationHandler(app.evaluations, app.validate, app.logger),
		ConfigurationHandler: handler.NewConfigurationHandler(app.configurations, app.logger),
		ReferenceHandler:     handler.NewReferenceHandler(app.references, app.validate, app.logger),
		ReportHandler:        handler.NewReportHandler(app.reports, app.logger),
		ScoreHandler:         handler.NewScoreHandler(app.reports, app.logger),
		DataHandler:          handler.NewDataHandler(app.transfers, app.logger),
	})

	listenErr := make(chan error, 1)
	go func() {
		app.logger.Info().Str("address", cfg.HTTPAddress()).Str("sandbox", cfg.SandboxBackend).Msg("grader api listening")
		listenErr <- server.Listen(cfg.HTTPAddress())
	}()

	return waitForShutdown(app, server, listenErr)
}

func waitForShutdown(app *application, server *fiber.App, listenErr <-chan error) error {
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-listenErr:
		return err
	case <-signalCtx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(ctx); err != nil {
		app.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	app.logger.Info().Msg("server stopped")
	return nil
}
