package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/toolchain"
)

// ReferenceService runs an instructor's reference solution to produce the
// expected output of an assignment.
type ReferenceService interface {
	Run(ctx context.Context, assignmentID uint, req dto.ReferenceRunRequest) (dto.ReferenceRunResponse, error)
	Accept(ctx context.Context, assignmentID uint, output string) error
}

type referenceService struct {
	assignments    repository.AssignmentRepository
	configurations repository.ConfigurationRepository
	pipeline       Pipeline
	validator      *validator.Validate
	logger         zerolog.Logger
}

// NewReferenceService constructs the reference runner.
func NewReferenceService(assignments repository.AssignmentRepository, configurations repository.ConfigurationRepository, pipeline Pipeline, validate *validator.Validate, logger zerolog.Logger) ReferenceService {
	return &referenceService{
		assignments:    assignments,
		configurations: configurations,
		pipeline:       pipeline,
		validator:      validate,
		logger:         logger.With().Str("component", "reference_service").Logger(),
	}
}

// Run executes the reference archive with the assignment's arguments and
// stdin. Pipeline failures are reported in the response status, not as errors.
func (s *referenceService) Run(ctx context.Context, assignmentID uint, req dto.ReferenceRunRequest) (dto.ReferenceRunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReferenceRunResponse{}, err
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.ReferenceRunResponse{}, err
	}

	archivePath := strings.TrimSpace(req.ArchivePath)
	if archivePath == "" {
		archivePath = strings.TrimSpace(assignment.ReferenceArchive)
	}
	if archivePath == "" {
		return dto.ReferenceRunResponse{}, ErrReferenceArchiveMissing
	}

	catalog, err := toolchain.LoadCatalog(ctx, s.configurations)
	if err != nil {
		return dto.ReferenceRunResponse{}, err
	}

	started := time.Now()
	run, err := s.pipeline.execute(ctx, toolchain.NewResolver(catalog, req.Selections), pipelineInput{
		ArchivePath: archivePath,
		Key:         fmt.Sprintf("reference-%d", assignment.ID),
		Args:        assignment.Args,
		Stdin:       assignment.Stdin,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return dto.ReferenceRunResponse{}, ctxErr
	}

	response := dto.ReferenceRunResponse{
		AssignmentID: assignment.ID,
		Status:       string(models.EvaluationStatusSuccess),
		Language:     run.Resolution.Language,
		EntryPoint:   run.Resolution.EntryPoint,
		Output:       run.Outcome.Stdout,
		Stderr:       joinDetail(run.Outcome.CompileStderr, run.Outcome.Stderr),
		ExitCode:     run.Outcome.ExitCode,
		DurationMs:   time.Since(started).Milliseconds(),
	}

	if err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			return dto.ReferenceRunResponse{}, err
		}
		response.Status = string(stepErr.Status)
		response.FailedStage = stepErr.Stage
		response.Detail = stepErr.Detail
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Str("status", response.Status).Msg("reference solution executed")
	return response, nil
}

// Accept stores output as the assignment's expected output.
func (s *referenceService) Accept(ctx context.Context, assignmentID uint, output string) error {
	if strings.TrimSpace(output) == "" {
		return ErrExpectedOutputMissing
	}

	if err := s.assignments.UpdateExpectedOutput(ctx, assignmentID, output); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assignment_id", assignmentID).Int("bytes", len(output)).Msg("expected output updated")
	return nil
}

func (s *referenceService) assignment(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}
