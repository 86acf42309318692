package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grader/internal/models"
)

// EvaluationResultRepository stores the latest evaluation of each (assignment, student) pair.
type EvaluationResultRepository interface {
	Upsert(ctx context.Context, result *models.EvaluationResult) error
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.EvaluationResult, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.EvaluationResult, error)
}

var evaluationResultColumns = []string{
	"batch_id",
	"score",
	"matched",
	"status",
	"failed_stage",
	"language",
	"configuration_id",
	"actual_output",
	"expected_output",
	"detail",
	"exit_code",
	"duration_ms",
	"details",
	"updated_at",
}

type evaluationResultRepository struct {
	db *gorm.DB
}

// NewEvaluationResultRepository constructs an evaluation result repository.
func NewEvaluationResultRepository(db *gorm.DB) EvaluationResultRepository {
	return &evaluationResultRepository{db: db}
}

func (r *evaluationResultRepository) Upsert(ctx context.Context, result *models.EvaluationResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns(evaluationResultColumns),
		}).
		Create(result).Error
}

func (r *evaluationResultRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.EvaluationResult, error) {
	var results []models.EvaluationResult
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("student_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *evaluationResultRepository) ListByBatch(ctx context.Context, batchID string) ([]models.EvaluationResult, error) {
	var results []models.EvaluationResult
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("assignment_id ASC, student_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
