package dto

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// EvaluationRequest selects what a batch evaluates. A nil AssignmentID
// evaluates every assignment with a readable submissions directory.
type EvaluationRequest struct {
	AssignmentID *uint           `json:"assignment_id" validate:"omitempty,gt=0"`
	Workers      int             `json:"workers" validate:"gte=0,lte=64"`
	Selections   map[string]uint `json:"selections"`
}

// SubmissionResult is the recorded outcome of one student's submission.
type SubmissionResult struct {
	AssignmentID    uint                   `json:"assignment_id"`
	StudentID       string                 `json:"student_id"`
	Status          string                 `json:"status"`
	FailedStage     string                 `json:"failed_stage,omitempty"`
	Matched         bool                   `json:"matched"`
	Score           float64                `json:"score"`
	Language        string                 `json:"language,omitempty"`
	ConfigurationID *uint                  `json:"configuration_id,omitempty"`
	ActualOutput    string                 `json:"actual_output"`
	ExpectedOutput  string                 `json:"expected_output"`
	Detail          string                 `json:"detail,omitempty"`
	ExitCode        int                    `json:"exit_code"`
	DurationMs      int64                  `json:"duration_ms"`
	Details         map[string]interface{} `json:"details,omitempty"`
}

// SkippedAssignment names an assignment left out of an all-assignments batch.
type SkippedAssignment struct {
	AssignmentID uint   `json:"assignment_id"`
	Name         string `json:"name"`
	Reason       string `json:"reason"`
}

// Notices attached to assignments that were evaluated.
const (
	NoticeEmptyExpectedOutput = "expected output is empty; only empty program output matches"
	NoticePastDue             = "due date has passed"
)

// AssignmentNotice flags an evaluated assignment for the instructor.
type AssignmentNotice struct {
	AssignmentID uint   `json:"assignment_id"`
	Name         string `json:"name"`
	Notice       string `json:"notice"`
}

// EvaluationReport summarises a batch. Results are in processing order.
type EvaluationReport struct {
	BatchID    string              `json:"batch_id"`
	Results    []SubmissionResult  `json:"results"`
	Evaluated  int                 `json:"evaluated"`
	Matched    int                 `json:"matched"`
	Failed     int                 `json:"failed"`
	Skipped    []SkippedAssignment `json:"skipped"`
	Notices    []AssignmentNotice  `json:"notices"`
	Cancelled  bool                `json:"cancelled"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Batch states reported by progress snapshots.
const (
	BatchStateRunning   = "running"
	BatchStateCompleted = "completed"
	BatchStateCancelled = "cancelled"
	BatchStateFailed    = "failed"
)

// BatchAccepted is returned when a background batch is started.
type BatchAccepted struct {
	BatchID string `json:"batch_id"`
}

// BatchProgress is a point-in-time snapshot of a batch.
type BatchProgress struct {
	BatchID             string            `json:"batch_id"`
	State               string            `json:"state"`
	Total               int               `json:"total"`
	Processed           int               `json:"processed"`
	Matched             int               `json:"matched"`
	Failed              int               `json:"failed"`
	CurrentAssignmentID uint              `json:"current_assignment_id,omitempty"`
	LastStudentID       string            `json:"last_student_id,omitempty"`
	Error               string            `json:"error,omitempty"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Report              *EvaluationReport `json:"report,omitempty"`
}

// NewSubmissionResult converts a persisted evaluation result into a DTO.
func NewSubmissionResult(result models.EvaluationResult) SubmissionResult {
	details := map[string]interface{}(nil)
	if result.Details != nil {
		details = map[string]interface{}(result.Details)
	}

	return SubmissionResult{
		AssignmentID:    result.AssignmentID,
		StudentID:       result.StudentID,
		Status:          string(result.Status),
		FailedStage:     result.FailedStage,
		Matched:         result.Matched,
		Score:           result.Score,
		Language:        result.Language,
		ConfigurationID: result.ConfigurationID,
		ActualOutput:    result.ActualOutput,
		ExpectedOutput:  result.ExpectedOutput,
		Detail:          result.Detail,
		ExitCode:        result.ExitCode,
		DurationMs:      result.DurationMs,
		Details:         details,
	}
}
