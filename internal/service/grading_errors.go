package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/gema-grader/internal/models"
)

var (
	// ErrCompilationFailed indicates the compiler rejected the submission or timed out.
	ErrCompilationFailed = errors.New("compilation failed")
	// ErrExecutionTimeout indicates the program exceeded the run time limit.
	ErrExecutionTimeout = errors.New("execution timed out")
	// ErrExecutionIO indicates a toolchain or program could not be started or awaited.
	ErrExecutionIO = errors.New("execution i/o error")
	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSubmissionsUnavailable indicates the assignment has no readable submissions location.
	ErrSubmissionsUnavailable = errors.New("submissions unavailable")
	// ErrExpectedOutputMissing indicates an empty output was offered as the expected output.
	ErrExpectedOutputMissing = errors.New("expected output missing")
	// ErrReferenceArchiveMissing indicates no reference solution archive is available.
	ErrReferenceArchiveMissing = errors.New("reference archive missing")
	// ErrConfigurationNotFound indicates the configuration does not exist.
	ErrConfigurationNotFound = errors.New("configuration not found")
	// ErrBatchNotFound indicates the batch is unknown or already finished.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrInvalidStudentID indicates a student identifier that is not a string of digits.
	ErrInvalidStudentID = errors.New("invalid student id")
	// ErrScoreNotFound indicates no score is recorded for the student and assignment.
	ErrScoreNotFound = errors.New("score not found")
	// ErrInvalidDataImport indicates an application data document failed validation.
	ErrInvalidDataImport = errors.New("invalid data import")
	// ErrInvalidConfigurationImport indicates an import document failed validation.
	ErrInvalidConfigurationImport = errors.New("invalid configuration import")
)

// Pipeline stages recorded as the failed stage of a result.
const (
	StageExtracting = "extracting"
	StageResolving  = "resolving"
	StageBuilding   = "building"
	StageRunning    = "running"
	StageComparing  = "comparing"
)

// StepError is a pipeline failure with the status to record and a diagnostic.
type StepError struct {
	Status models.EvaluationStatus
	Stage  string
	Detail string
	Err    error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(status models.EvaluationStatus, stage, detail string, err error) *StepError {
	return &StepError{Status: status, Stage: stage, Detail: detail, Err: err}
}
