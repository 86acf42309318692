package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/toolchain"
)

const configurationExportVersion = 1

//go:embed schemas/configuration_import.schema.json
var configurationImportSchema string

// ConfigurationService manages toolchain bindings.
type ConfigurationService interface {
	List(ctx context.Context) ([]dto.ConfigurationResponse, error)
	Register(ctx context.Context, req dto.ConfigurationRequest) (dto.ConfigurationResponse, bool, error)
	Delete(ctx context.Context, id uint) error
	Suggest(ctx context.Context, language string) (dto.ConfigurationSuggestion, error)
	Languages(ctx context.Context) ([]dto.LanguageSupport, error)
	Export(ctx context.Context) (dto.ConfigurationExport, error)
	Import(ctx context.Context, payload []byte) (dto.ConfigurationImportResult, error)
}

type configurationService struct {
	repo      repository.ConfigurationRepository
	validator *validator.Validate
	schema    *jsonschema.Schema
	logger    zerolog.Logger
}

// NewConfigurationService constructs the configuration service.
func NewConfigurationService(repo repository.ConfigurationRepository, validate *validator.Validate, logger zerolog.Logger) ConfigurationService {
	return &configurationService{
		repo:      repo,
		validator: validate,
		schema:    jsonschema.MustCompileString("configuration_import.schema.json", configurationImportSchema),
		logger:    logger.With().Str("component", "configuration_service").Logger(),
	}
}

func (s *configurationService) List(ctx context.Context) ([]dto.ConfigurationResponse, error) {
	configurations, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewConfigurationResponses(configurations), nil
}

// Register creates a configuration unless the same language and path is
// already registered, in which case the existing one is returned.
func (s *configurationService) Register(ctx context.Context, req dto.ConfigurationRequest) (dto.ConfigurationResponse, bool, error) {
	req.Language = toolchain.NormalizeLanguage(req.Language)
	req.Path = strings.TrimSpace(req.Path)
	if err := s.validator.Struct(req); err != nil {
		return dto.ConfigurationResponse{}, false, err
	}

	existing, err := s.repo.FindByLanguageAndPath(ctx, req.Language, req.Path)
	if err == nil {
		return dto.NewConfigurationResponse(existing), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ConfigurationResponse{}, false, err
	}

	configuration := models.Configuration{Language: req.Language, Path: req.Path}
	if err := s.repo.Create(ctx, &configuration); err != nil {
		return dto.ConfigurationResponse{}, false, err
	}

	s.logger.Info().Uint("configuration_id", configuration.ID).Str("language", configuration.Language).Str("path", configuration.Path).Msg("configuration registered")
	return dto.NewConfigurationResponse(configuration), true, nil
}

func (s *configurationService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConfigurationNotFound
		}
		return err
	}
	s.logger.Info().Uint("configuration_id", id).Msg("configuration deleted")
	return nil
}

func (s *configurationService) Suggest(ctx context.Context, language string) (dto.ConfigurationSuggestion, error) {
	normalized := toolchain.NormalizeLanguage(language)
	path, err := toolchain.Suggest(normalized)
	if err != nil {
		return dto.ConfigurationSuggestion{}, err
	}
	return dto.ConfigurationSuggestion{Language: normalized, Path: path}, nil
}

// Languages lists every supported language with its registered toolchains.
func (s *configurationService) Languages(ctx context.Context) ([]dto.LanguageSupport, error) {
	languages := toolchain.Languages()
	support := make([]dto.LanguageSupport, 0, len(languages))
	for _, language := range languages {
		spec, err := toolchain.Lookup(language)
		if err != nil {
			return nil, err
		}
		configurations, err := s.repo.ListByLanguage(ctx, language)
		if err != nil {
			return nil, err
		}
		support = append(support, dto.LanguageSupport{
			Language:       spec.Language,
			Compiled:       spec.Compiled,
			Binaries:       spec.Binaries,
			Configurations: dto.NewConfigurationResponses(configurations),
			Ambiguous:      len(configurations) > 1,
		})
	}
	return support, nil
}

func (s *configurationService) Export(ctx context.Context) (dto.ConfigurationExport, error) {
	configurations, err := s.repo.List(ctx)
	if err != nil {
		return dto.ConfigurationExport{}, err
	}

	entries := make([]dto.ConfigurationEntry, 0, len(configurations))
	for _, configuration := range configurations {
		entries = append(entries, dto.ConfigurationEntry{Language: configuration.Language, Path: configuration.Path})
	}

	return dto.ConfigurationExport{
		Version:        configurationExportVersion,
		ExportedAt:     time.Now().UTC(),
		Configurations: entries,
	}, nil
}

// Import validates an exported document and registers every entry in it.
// Entries that already exist are counted but not duplicated.
func (s *configurationService) Import(ctx context.Context, payload []byte) (dto.ConfigurationImportResult, error) {
	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return dto.ConfigurationImportResult{}, fmt.Errorf("%w: %v", ErrInvalidConfigurationImport, err)
	}
	if err := s.schema.Validate(document); err != nil {
		return dto.ConfigurationImportResult{}, fmt.Errorf("%w: %v", ErrInvalidConfigurationImport, err)
	}

	var export dto.ConfigurationExport
	if err := json.Unmarshal(payload, &export); err != nil {
		return dto.ConfigurationImportResult{}, fmt.Errorf("%w: %v", ErrInvalidConfigurationImport, err)
	}

	result := dto.ConfigurationImportResult{Configurations: []dto.ConfigurationResponse{}}
	for _, entry := range export.Configurations {
		configuration, created, err := s.Register(ctx, dto.ConfigurationRequest{Language: entry.Language, Path: entry.Path})
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Existing++
		}
		result.Configurations = append(result.Configurations, configuration)
	}

	s.logger.Info().Int("created", result.Created).Int("existing", result.Existing).Msg("configurations imported")
	return result, nil
}
