package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

const dataExportVersion = 2

//go:embed schemas/data_import.schema.json
var dataImportSchema string

// TransferService moves assignments, configurations and scores between
// grader installations.
type TransferService interface {
	Export(ctx context.Context) (dto.DataExport, error)
	Import(ctx context.Context, payload []byte) (dto.DataImportResult, error)
}

type transferService struct {
	assignments    repository.AssignmentRepository
	scores         repository.ScoreRepository
	configurations ConfigurationService
	schema         *jsonschema.Schema
	logger         zerolog.Logger
}

// NewTransferService constructs the data transfer service.
func NewTransferService(assignments repository.AssignmentRepository, scores repository.ScoreRepository, configurations ConfigurationService, logger zerolog.Logger) TransferService {
	return &transferService{
		assignments:    assignments,
		scores:         scores,
		configurations: configurations,
		schema:         jsonschema.MustCompileString("data_import.schema.json", dataImportSchema),
		logger:         logger.With().Str("component", "transfer_service").Logger(),
	}
}

func (s *transferService) Export(ctx context.Context) (dto.DataExport, error) {
	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return dto.DataExport{}, err
	}
	configurations, err := s.configurations.Export(ctx)
	if err != nil {
		return dto.DataExport{}, err
	}
	scores, err := s.scores.List(ctx)
	if err != nil {
		return dto.DataExport{}, err
	}

	document := dto.DataExport{
		Version:        dataExportVersion,
		ExportedAt:     time.Now().UTC(),
		Assignments:    make([]dto.AssignmentEntry, 0, len(assignments)),
		Configurations: configurations.Configurations,
		Scores:         make([]dto.ScoreEntry, 0, len(scores)),
	}
	for _, assignment := range assignments {
		document.Assignments = append(document.Assignments, dto.NewAssignmentEntry(assignment))
	}
	for _, score := range scores {
		document.Scores = append(document.Scores, dto.ScoreEntry{AssignmentID: score.AssignmentID, StudentID: score.StudentID, Score: score.Score})
	}
	return document, nil
}

// Import validates the whole document before writing anything, then
// registers its configurations and upserts its scores. Assignments are left
// untouched; scores for assignments missing here are skipped and reported.
func (s *transferService) Import(ctx context.Context, payload []byte) (dto.DataImportResult, error) {
	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return dto.DataImportResult{}, fmt.Errorf("%w: %v", ErrInvalidDataImport, err)
	}
	if err := s.schema.Validate(raw); err != nil {
		return dto.DataImportResult{}, fmt.Errorf("%w: %v", ErrInvalidDataImport, err)
	}

	var document dto.DataExport
	if err := json.Unmarshal(payload, &document); err != nil {
		return dto.DataImportResult{}, fmt.Errorf("%w: %v", ErrInvalidDataImport, err)
	}

	result := dto.DataImportResult{UnknownAssignments: []uint{}}
	for _, entry := range document.Configurations {
		_, created, err := s.configurations.Register(ctx, dto.ConfigurationRequest{Language: entry.Language, Path: entry.Path})
		if err != nil {
			return result, err
		}
		if created {
			result.ConfigurationsCreated++
		} else {
			result.ConfigurationsExisting++
		}
	}

	known := make(map[uint]bool)
	for _, entry := range document.Scores {
		exists, seen := known[entry.AssignmentID]
		if !seen {
			_, err := s.assignments.GetByID(ctx, entry.AssignmentID)
			switch {
			case err == nil:
				exists = true
			case errors.Is(err, gorm.ErrRecordNotFound):
				result.UnknownAssignments = append(result.UnknownAssignments, entry.AssignmentID)
			default:
				return result, err
			}
			known[entry.AssignmentID] = exists
		}
		if !exists {
			result.ScoresSkipped++
			continue
		}

		score := models.Score{AssignmentID: entry.AssignmentID, StudentID: entry.StudentID, Score: entry.Score}
		if err := s.scores.Upsert(ctx, &score); err != nil {
			return result, err
		}
		result.ScoresImported++
	}
	sort.Slice(result.UnknownAssignments, func(i, j int) bool { return result.UnknownAssignments[i] < result.UnknownAssignments[j] })

	s.logger.Info().
		Int("configurations_created", result.ConfigurationsCreated).
		Int("scores_imported", result.ScoresImported).
		Int("scores_skipped", result.ScoresSkipped).
		Msg("application data imported")
	return result, nil
}
