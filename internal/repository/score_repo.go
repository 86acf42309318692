package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ScoreRepository is the score sink written after every verdict.
type ScoreRepository interface {
	Upsert(ctx context.Context, score *models.Score) error
	Get(ctx context.Context, assignmentID uint, studentID string) (models.Score, error)
	List(ctx context.Context) ([]models.Score, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Score, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Score, error)
}

type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository constructs a score repository.
func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) Upsert(ctx context.Context, score *models.Score) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).
		Create(score).Error
}

func (r *scoreRepository) Get(ctx context.Context, assignmentID uint, studentID string) (models.Score, error) {
	var score models.Score
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&score).Error
	if err != nil {
		return models.Score{}, err
	}
	return score, nil
}

func (r *scoreRepository) List(ctx context.Context) ([]models.Score, error) {
	var scores []models.Score
	if err := r.db.WithContext(ctx).Order("assignment_id ASC, student_id ASC").Find(&scores).Error; err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *scoreRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("student_id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *scoreRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("assignment_id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}
