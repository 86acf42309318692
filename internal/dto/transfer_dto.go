package dto

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// AssignmentEntry is one exported assignment. Assignments are exported for
// reference and are not written back on import.
type AssignmentEntry struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	DueDate          time.Time `json:"due_date"`
	Weight           float64   `json:"weight"`
	ExpectedOutput   string    `json:"expected_output"`
	Args             string    `json:"args"`
	Stdin            string    `json:"stdin"`
	ReferenceArchive string    `json:"reference_archive"`
	SubmissionsDir   string    `json:"submissions_dir"`
}

// ScoreEntry is one exported grade.
type ScoreEntry struct {
	AssignmentID uint    `json:"assignment_id"`
	StudentID    string  `json:"student_id"`
	Score        float64 `json:"score"`
}

// DataExport is the portable application data document.
type DataExport struct {
	Version        int                  `json:"version"`
	ExportedAt     time.Time            `json:"exported_at"`
	Assignments    []AssignmentEntry    `json:"assignments"`
	Configurations []ConfigurationEntry `json:"configurations"`
	Scores         []ScoreEntry         `json:"scores"`
}

// DataImportResult reports what a data import changed.
type DataImportResult struct {
	ConfigurationsCreated  int    `json:"configurations_created"`
	ConfigurationsExisting int    `json:"configurations_existing"`
	ScoresImported         int    `json:"scores_imported"`
	ScoresSkipped          int    `json:"scores_skipped"`
	UnknownAssignments     []uint `json:"unknown_assignments"`
}

// NewAssignmentEntry converts an assignment model into an export entry.
func NewAssignmentEntry(assignment models.Assignment) AssignmentEntry {
	return AssignmentEntry{
		ID:               assignment.ID,
		Name:             assignment.Name,
		DueDate:          assignment.DueDate,
		Weight:           assignment.Weight,
		ExpectedOutput:   assignment.ExpectedOutput,
		Args:             assignment.Args,
		Stdin:            assignment.Stdin,
		ReferenceArchive: assignment.ReferenceArchive,
		SubmissionsDir:   assignment.SubmissionsDir,
	}
}
