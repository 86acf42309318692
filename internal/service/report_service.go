package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/repository"
)

// ReportService aggregates recorded scores.
type ReportService interface {
	Scores(ctx context.Context) (dto.ScoreReport, error)
	Score(ctx context.Context, assignmentID uint, studentID string) (dto.ScoreResponse, error)
	StudentScores(ctx context.Context, studentID string) ([]dto.ScoreResponse, error)
}

type reportService struct {
	assignments repository.AssignmentRepository
	scores      repository.ScoreRepository
	results     repository.EvaluationResultRepository
	logger      zerolog.Logger
}

// NewReportService constructs the score report service.
func NewReportService(assignments repository.AssignmentRepository, scores repository.ScoreRepository, results repository.EvaluationResultRepository, logger zerolog.Logger) ReportService {
	return &reportService{
		assignments: assignments,
		scores:      scores,
		results:     results,
		logger:      logger.With().Str("component", "report_service").Logger(),
	}
}

// Scores reports per-assignment pass rates over every recorded result and
// per-student totals over the persisted scores.
func (s *reportService) Scores(ctx context.Context) (dto.ScoreReport, error) {
	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return dto.ScoreReport{}, err
	}

	report := dto.ScoreReport{
		Assignments: make([]dto.AssignmentScoreSummary, 0, len(assignments)),
		Students:    []dto.StudentScoreSummary{},
	}
	students := make(map[string]*dto.StudentScoreSummary)
	student := func(id string) *dto.StudentScoreSummary {
		summary, ok := students[id]
		if !ok {
			summary = &dto.StudentScoreSummary{StudentID: id, Scores: map[uint]float64{}}
			students[id] = summary
		}
		return summary
	}

	for _, assignment := range assignments {
		results, err := s.results.ListByAssignment(ctx, assignment.ID)
		if err != nil {
			return dto.ScoreReport{}, err
		}

		summary := dto.AssignmentScoreSummary{
			AssignmentID: assignment.ID,
			Name:         assignment.Name,
			Weight:       assignment.Weight,
			Evaluated:    len(results),
		}
		for _, result := range results {
			entry := student(result.StudentID)
			entry.Evaluated++
			if result.Matched {
				summary.Passed++
				entry.Passed++
			}
		}
		summary.PassRate = passRate(summary.Passed, summary.Evaluated)

		report.Evaluated += summary.Evaluated
		report.Passed += summary.Passed
		report.Assignments = append(report.Assignments, summary)
	}

	scores, err := s.scores.List(ctx)
	if err != nil {
		return dto.ScoreReport{}, err
	}
	for _, score := range scores {
		entry := student(score.StudentID)
		entry.Scores[score.AssignmentID] = score.Score
		entry.Total += score.Score
	}

	for _, summary := range students {
		report.Students = append(report.Students, *summary)
	}
	sort.Slice(report.Students, func(i, j int) bool {
		a, b := report.Students[i].StudentID, report.Students[j].StudentID
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})

	report.PassRate = passRate(report.Passed, report.Evaluated)
	s.logger.Debug().Int("assignments", len(report.Assignments)).Int("students", len(report.Students)).Msg("score report built")
	return report, nil
}

// passRate is a percentage rounded to two decimals.
func passRate(passed, evaluated int) float64 {
	if evaluated == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(evaluated)*10000) / 100
}

func (s *reportService) Score(ctx context.Context, assignmentID uint, studentID string) (dto.ScoreResponse, error) {
	if !isStudentID(studentID) {
		return dto.ScoreResponse{}, ErrInvalidStudentID
	}
	score, err := s.scores.Get(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScoreResponse{}, ErrScoreNotFound
		}
		return dto.ScoreResponse{}, err
	}

	response := dto.NewScoreResponse(score)
	if assignment, err := s.assignments.GetByID(ctx, assignmentID); err == nil {
		response.AssignmentName = assignment.Name
	}
	return response, nil
}

// StudentScores lists every recorded score of one student. A student with
// no scores yields an empty list.
func (s *reportService) StudentScores(ctx context.Context, studentID string) ([]dto.ScoreResponse, error) {
	if !isStudentID(studentID) {
		return nil, ErrInvalidStudentID
	}
	scores, err := s.scores.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(assignments))
	for _, assignment := range assignments {
		names[assignment.ID] = assignment.Name
	}

	responses := make([]dto.ScoreResponse, 0, len(scores))
	for _, score := range scores {
		response := dto.NewScoreResponse(score)
		response.AssignmentName = names[score.AssignmentID]
		responses = append(responses, response)
	}
	return responses, nil
}
