package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/pkg/archive"
	"github.com/noah-isme/gema-grader/pkg/sandbox"
)

// application holds the services shared by every subcommand.
type application struct {
	cfg    config.Config
	logger zerolog.Logger

	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn
	docker *sandbox.DockerExecutor

	evaluations    service.EvaluationService
	configurations service.ConfigurationService
	references     service.ReferenceService
	reports        service.ReportService
	transfers      service.TransferService
	validate       *validator.Validate
}

func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

func newApplication(cfg config.Config, logOutput io.Writer) (*application, error) {
	app := &application{
		cfg:      cfg,
		logger:   newLogger(cfg, logOutput),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.db = db
	if err := database.Migrate(db); err != nil {
		app.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.redis = client
	}

	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		app.nats = conn
	}

	executor, err := app.newExecutor()
	if err != nil {
		app.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.WorkspaceRoot, 0o755); err != nil {
		app.Close()
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	maxOutput := int64(cfg.MaxOutputKB) << 10
	pipeline := service.Pipeline{
		Extractor: archive.NewExtractor(archive.Config{
			Root:          cfg.WorkspaceRoot,
			MaxTotalBytes: int64(cfg.MaxArchiveMB) << 20,
			Logger:        app.logger,
		}),
		Runner: service.NewBuildRunner(executor, service.BuildRunnerConfig{
			CompileTimeout: cfg.CompileTimeout,
			RunTimeout:     cfg.ExecutionTimeout,
			MaxOutputBytes: maxOutput,
			Containerized:  cfg.Containerized(),
			Images:         cfg.SandboxImages,
			MemoryLimitMB:  int64(cfg.CodeRunMemoryMB),
			CPUShares:      int64(cfg.CodeRunCPUShares),
		}, app.logger),
		KeepWorkspaces: cfg.KeepWorkspaces,
	}

	assignmentRepo := repository.NewAssignmentRepository(db)
	configurationRepo := repository.NewConfigurationRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	resultRepo := repository.NewEvaluationResultRepository(db)

	progress := service.NewProgressTracker(app.redis, app.nats, cfg.ProgressSubject, cfg.ProgressTTL, app.logger)

	app.evaluations = service.NewEvaluationService(assignmentRepo, configurationRepo, scoreRepo, resultRepo,
		service.NewDirectorySource(), pipeline, progress, app.validate, app.logger,
		service.EvaluationConfig{Workers: cfg.Workers})
	app.configurations = service.NewConfigurationService(configurationRepo, app.validate, app.logger)
	app.references = service.NewReferenceService(assignmentRepo, configurationRepo, pipeline, app.validate, app.logger)
	app.reports = service.NewReportService(assignmentRepo, scoreRepo, resultRepo, app.logger)
	app.transfers = service.NewTransferService(assignmentRepo, scoreRepo, app.configurations, app.logger)

	return app, nil
}

func (a *application) newExecutor() (sandbox.Executor, error) {
	maxOutput := int64(a.cfg.MaxOutputKB) << 10
	if a.cfg.Containerized() {
		executor, err := sandbox.NewDockerExecutor(sandbox.DockerConfig{
			Host:           a.cfg.DockerHost,
			Timeout:        a.cfg.ExecutionTimeout,
			MemoryLimitMB:  int64(a.cfg.CodeRunMemoryMB),
			CPUShares:      int64(a.cfg.CodeRunCPUShares),
			MaxOutputBytes: maxOutput,
			Logger:         a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.docker = executor
		return executor, nil
	}

	return sandbox.NewProcessExecutor(sandbox.ProcessConfig{
		Timeout:        a.cfg.ExecutionTimeout,
		MaxOutputBytes: maxOutput,
		Logger:         a.logger,
	}), nil
}

// Close stops background batches and releases every connection.
func (a *application) Close() {
	if a.evaluations != nil {
		a.evaluations.Close()
	}
	if a.docker != nil {
		_ = a.docker.Close()
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
