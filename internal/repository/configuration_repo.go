package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ConfigurationRepository persists toolchain bindings.
type ConfigurationRepository interface {
	List(ctx context.Context) ([]models.Configuration, error)
	ListByLanguage(ctx context.Context, language string) ([]models.Configuration, error)
	GetByID(ctx context.Context, id uint) (models.Configuration, error)
	FindByLanguageAndPath(ctx context.Context, language, path string) (models.Configuration, error)
	Create(ctx context.Context, configuration *models.Configuration) error
	Delete(ctx context.Context, id uint) error
}

type configurationRepository struct {
	db *gorm.DB
}

// NewConfigurationRepository constructs a configuration repository.
func NewConfigurationRepository(db *gorm.DB) ConfigurationRepository {
	return &configurationRepository{db: db}
}

func (r *configurationRepository) List(ctx context.Context) ([]models.Configuration, error) {
	var configurations []models.Configuration
	if err := r.db.WithContext(ctx).Order("language ASC, id ASC").Find(&configurations).Error; err != nil {
		return nil, err
	}
	return configurations, nil
}

func (r *configurationRepository) ListByLanguage(ctx context.Context, language string) ([]models.Configuration, error) {
	var configurations []models.Configuration
	err := r.db.WithContext(ctx).
		Where("language = ?", strings.ToLower(strings.TrimSpace(language))).
		Order("id ASC").
		Find(&configurations).Error
	if err != nil {
		return nil, err
	}
	return configurations, nil
}

func (r *configurationRepository) GetByID(ctx context.Context, id uint) (models.Configuration, error) {
	var configuration models.Configuration
	if err := r.db.WithContext(ctx).First(&configuration, id).Error; err != nil {
		return models.Configuration{}, err
	}
	return configuration, nil
}

func (r *configurationRepository) FindByLanguageAndPath(ctx context.Context, language, path string) (models.Configuration, error) {
	var configuration models.Configuration
	err := r.db.WithContext(ctx).
		Where("language = ? AND path = ?", language, path).
		First(&configuration).Error
	if err != nil {
		return models.Configuration{}, err
	}
	return configuration, nil
}

func (r *configurationRepository) Create(ctx context.Context, configuration *models.Configuration) error {
	return r.db.WithContext(ctx).Create(configuration).Error
}

func (r *configurationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Configuration{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
