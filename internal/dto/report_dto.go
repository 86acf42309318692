package dto

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// AssignmentScoreSummary aggregates results for one assignment.
type AssignmentScoreSummary struct {
	AssignmentID uint    `json:"assignment_id"`
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Evaluated    int     `json:"evaluated"`
	Passed       int     `json:"passed"`
	PassRate     float64 `json:"pass_rate"`
}

// StudentScoreSummary totals one student's scores across assignments.
type StudentScoreSummary struct {
	StudentID string           `json:"student_id"`
	Total     float64          `json:"total"`
	Scores    map[uint]float64 `json:"scores"`
	Evaluated int              `json:"evaluated"`
	Passed    int              `json:"passed"`
}

// ScoreReport is the pass-rate report across all assignments.
type ScoreReport struct {
	Assignments []AssignmentScoreSummary `json:"assignments"`
	Students    []StudentScoreSummary    `json:"students"`
	Evaluated   int                      `json:"evaluated"`
	Passed      int                      `json:"passed"`
	PassRate    float64                  `json:"pass_rate"`
}

// ScoreResponse is one persisted grade.
type ScoreResponse struct {
	AssignmentID   uint      `json:"assignment_id"`
	AssignmentName string    `json:"assignment_name,omitempty"`
	StudentID      string    `json:"student_id"`
	Score          float64   `json:"score"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewScoreResponse converts a score model into a DTO.
func NewScoreResponse(score models.Score) ScoreResponse {
	return ScoreResponse{
		AssignmentID: score.AssignmentID,
		StudentID:    score.StudentID,
		Score:        score.Score,
		UpdatedAt:    score.UpdatedAt,
	}
}
