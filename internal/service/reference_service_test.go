package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
)

func (e *testEnv) referenceService() ReferenceService {
	return NewReferenceService(e.assignments, e.configurations, e.pipeline, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestReferenceServiceRunAndAccept(t *testing.T) {
	env := newTestEnv(t)
	env.addConfiguration(t, "python", "python3")
	reference := writeSubmission(t, filepath.Join(env.root, "reference"), "solution", map[string]string{"solution.py": "expected"})
	assignment := env.addAssignment(t, models.Assignment{Name: "Reference", Weight: 10, Stdin: "stdin", ReferenceArchive: reference})
	svc := env.referenceService()

	response, err := svc.Run(context.Background(), assignment.ID, dto.ReferenceRunRequest{})
	require.NoError(t, err)
	require.Equal(t, string(models.EvaluationStatusSuccess), response.Status)
	require.Equal(t, "expected stdin", response.Output)
	require.Equal(t, "solution.py", response.EntryPoint)
	require.Equal(t, "python", response.Language)

	require.NoError(t, svc.Accept(context.Background(), assignment.ID, response.Output))
	stored, err := env.assignments.GetByID(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Equal(t, "expected stdin", stored.ExpectedOutput)
	require.Empty(t, env.scratchEntries(t))
}

func TestReferenceServiceOverrideArchiveAndFailures(t *testing.T) {
	env := newTestEnv(t)
	assignment := env.addAssignment(t, models.Assignment{Name: "No reference", Weight: 10})
	svc := env.referenceService()

	_, err := svc.Run(context.Background(), assignment.ID, dto.ReferenceRunRequest{})
	require.True(t, errors.Is(err, ErrReferenceArchiveMissing))

	_, err = svc.Run(context.Background(), 404, dto.ReferenceRunRequest{})
	require.True(t, errors.Is(err, ErrAssignmentNotFound))

	override := writeSubmission(t, filepath.Join(env.root, "reference"), "override", map[string]string{"main.go": "package main"})
	response, err := svc.Run(context.Background(), assignment.ID, dto.ReferenceRunRequest{ArchivePath: override})
	require.NoError(t, err)
	require.Equal(t, string(models.EvaluationStatusUnconfiguredLanguage), response.Status)
	require.Equal(t, StageResolving, response.FailedStage)
	require.Equal(t, "go", response.Language)
}

func TestReferenceServiceAcceptValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.referenceService()

	require.True(t, errors.Is(svc.Accept(context.Background(), 1, "  "), ErrExpectedOutputMissing))
	require.True(t, errors.Is(svc.Accept(context.Background(), 404, "output"), ErrAssignmentNotFound))
}
