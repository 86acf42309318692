package models

import (
	"time"

	"gorm.io/datatypes"
)

// EvaluationStatus enumerates the verdicts and failure kinds of one evaluation.
type EvaluationStatus string

const (
	EvaluationStatusSuccess                EvaluationStatus = "success"
	EvaluationStatusMismatch               EvaluationStatus = "mismatch"
	EvaluationStatusInvalidArchive         EvaluationStatus = "invalid_archive"
	EvaluationStatusExtractionIOError      EvaluationStatus = "extraction_io_error"
	EvaluationStatusNoEntryPoint           EvaluationStatus = "no_entry_point"
	EvaluationStatusUnsupportedLanguage    EvaluationStatus = "unsupported_language"
	EvaluationStatusUnconfiguredLanguage   EvaluationStatus = "unconfigured_language"
	EvaluationStatusAmbiguousConfiguration EvaluationStatus = "ambiguous_configuration"
	EvaluationStatusCompilationFailed      EvaluationStatus = "compilation_failed"
	EvaluationStatusExecutionTimeout       EvaluationStatus = "execution_timeout"
	EvaluationStatusExecutionIOError       EvaluationStatus = "execution_io_error"
)

// Evaluated reports whether the submission reached the output comparison step.
func (s EvaluationStatus) Evaluated() bool {
	return s == EvaluationStatusSuccess || s == EvaluationStatusMismatch
}

// EvaluationResult captures the outcome of evaluating one student's submission.
type EvaluationResult struct {
	AssignmentID    uint              `gorm:"primaryKey;autoIncrement:false" json:"assignment_id"`
	StudentID       string            `gorm:"primaryKey;size:32" json:"student_id"`
	BatchID         string            `gorm:"size:64;index" json:"batch_id"`
	Score           float64           `gorm:"not null;default:0" json:"score"`
	Matched         bool              `gorm:"not null;default:false" json:"matched"`
	Status          EvaluationStatus  `gorm:"size:32;not null" json:"status"`
	FailedStage     string            `gorm:"size:32" json:"failed_stage"`
	Language        string            `gorm:"size:32" json:"language"`
	ConfigurationID *uint             `json:"configuration_id"`
	ActualOutput    string            `gorm:"type:text" json:"actual_output"`
	ExpectedOutput  string            `gorm:"type:text" json:"expected_output"`
	Detail          string            `gorm:"type:text" json:"detail"`
	ExitCode        int               `gorm:"default:0" json:"exit_code"`
	DurationMs      int64             `gorm:"default:0" json:"duration_ms"`
	Details         datatypes.JSONMap `json:"details"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
