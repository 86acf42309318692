package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/toolchain"
)

// EvaluationService grades batches of student submissions.
type EvaluationService interface {
	Evaluate(ctx context.Context, req dto.EvaluationRequest) (dto.EvaluationReport, error)
	Start(ctx context.Context, req dto.EvaluationRequest) (dto.BatchAccepted, error)
	Cancel(batchID string) error
	Progress(ctx context.Context, batchID string) (dto.BatchProgress, error)
	Close()
}

// EvaluationConfig holds batch defaults.
type EvaluationConfig struct {
	Workers int
}

type evaluationService struct {
	assignments    repository.AssignmentRepository
	configurations repository.ConfigurationRepository
	scores         repository.ScoreRepository
	results        repository.EvaluationResultRepository
	source         SubmissionSource
	pipeline       Pipeline
	progress       ProgressTracker
	validator      *validator.Validate
	logger         zerolog.Logger
	tracer         trace.Tracer
	config         EvaluationConfig

	baseCtx    context.Context
	stop       context.CancelFunc
	mu         sync.Mutex
	batches    map[string]context.CancelFunc
	background sync.WaitGroup
}

// NewEvaluationService constructs the batch orchestrator.
func NewEvaluationService(assignments repository.AssignmentRepository, configurations repository.ConfigurationRepository, scores repository.ScoreRepository, results repository.EvaluationResultRepository, source SubmissionSource, pipeline Pipeline, progress ProgressTracker, validate *validator.Validate, logger zerolog.Logger, cfg EvaluationConfig) EvaluationService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	baseCtx, stop := context.WithCancel(context.Background())

	return &evaluationService{
		assignments:    assignments,
		configurations: configurations,
		scores:         scores,
		results:        results,
		source:         source,
		pipeline:       pipeline,
		progress:       progress,
		validator:      validate,
		logger:         logger.With().Str("component", "evaluation_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/gema-grader/internal/service"),
		config:         cfg,
		baseCtx:        baseCtx,
		stop:           stop,
		batches:        make(map[string]context.CancelFunc),
	}
}

type batchPlan struct {
	single      bool
	assignments []models.Assignment
	skipped     []dto.SkippedAssignment
	notices     []dto.AssignmentNotice
}

func (s *evaluationService) Evaluate(ctx context.Context, req dto.EvaluationRequest) (dto.EvaluationReport, error) {
	plan, err := s.prepare(ctx, req)
	if err != nil {
		return dto.EvaluationReport{}, err
	}
	return s.run(ctx, uuid.NewString(), req, plan)
}

func (s *evaluationService) Start(ctx context.Context, req dto.EvaluationRequest) (dto.BatchAccepted, error) {
	plan, err := s.prepare(ctx, req)
	if err != nil {
		return dto.BatchAccepted{}, err
	}

	batchID := uuid.NewString()
	batchCtx, cancel := context.WithCancel(s.baseCtx)

	s.mu.Lock()
	s.batches[batchID] = cancel
	s.mu.Unlock()

	s.updateProgress(ctx, dto.BatchProgress{BatchID: batchID, State: dto.BatchStateRunning})

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			s.mu.Lock()
			delete(s.batches, batchID)
			s.mu.Unlock()
			cancel()
		}()

		if _, err := s.run(batchCtx, batchID, req, plan); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Str("batch_id", batchID).Msg("background batch failed")
		}
	}()

	return dto.BatchAccepted{BatchID: batchID}, nil
}

func (s *evaluationService) Cancel(batchID string) error {
	s.mu.Lock()
	cancel, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return ErrBatchNotFound
	}
	cancel()
	s.logger.Info().Str("batch_id", batchID).Msg("batch cancellation requested")
	return nil
}

func (s *evaluationService) Progress(ctx context.Context, batchID string) (dto.BatchProgress, error) {
	if s.progress == nil {
		return dto.BatchProgress{}, ErrBatchNotFound
	}
	return s.progress.Get(ctx, batchID)
}

// Close cancels running background batches and waits for them to stop.
func (s *evaluationService) Close() {
	s.stop()
	s.background.Wait()
}

// prepare validates the request and decides which assignments take part.
func (s *evaluationService) prepare(ctx context.Context, req dto.EvaluationRequest) (batchPlan, error) {
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return batchPlan{}, err
		}
	}

	if req.AssignmentID != nil {
		assignment, err := s.assignments.GetByID(ctx, *req.AssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return batchPlan{}, ErrAssignmentNotFound
			}
			return batchPlan{}, err
		}
		if reason := readiness(assignment); reason != nil {
			return batchPlan{}, fmt.Errorf("assignment %d: %w", assignment.ID, reason)
		}
		plan := batchPlan{single: true, assignments: []models.Assignment{assignment}}
		plan.notices = s.noticesFor(plan.assignments)
		return plan, nil
	}

	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return batchPlan{}, err
	}

	plan := batchPlan{skipped: []dto.SkippedAssignment{}}
	for _, assignment := range assignments {
		if reason := readiness(assignment); reason != nil {
			plan.skipped = append(plan.skipped, dto.SkippedAssignment{AssignmentID: assignment.ID, Name: assignment.Name, Reason: reason.Error()})
			s.logger.Warn().Uint("assignment_id", assignment.ID).Str("reason", reason.Error()).Msg("assignment skipped")
			continue
		}
		plan.assignments = append(plan.assignments, assignment)
	}
	plan.notices = s.noticesFor(plan.assignments)
	return plan, nil
}

// noticesFor flags assignments that are graded but worth a second look.
func (s *evaluationService) noticesFor(assignments []models.Assignment) []dto.AssignmentNotice {
	now := time.Now()
	notices := []dto.AssignmentNotice{}
	for _, assignment := range assignments {
		if !assignment.HasExpectedOutput() {
			notices = append(notices, dto.AssignmentNotice{AssignmentID: assignment.ID, Name: assignment.Name, Notice: dto.NoticeEmptyExpectedOutput})
			s.logger.Warn().Uint("assignment_id", assignment.ID).Msg("expected output is empty; only empty program output will match")
		}
		if assignment.IsPastDue(now) {
			notices = append(notices, dto.AssignmentNotice{AssignmentID: assignment.ID, Name: assignment.Name, Notice: dto.NoticePastDue})
		}
	}
	return notices
}

func readiness(assignment models.Assignment) error {
	if !assignment.HasSubmissions() {
		return fmt.Errorf("%w: no submissions directory configured", ErrSubmissionsUnavailable)
	}
	info, err := os.Stat(assignment.SubmissionsDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionsUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSubmissionsUnavailable, assignment.SubmissionsDir)
	}
	return nil
}

func (s *evaluationService) run(parent context.Context, batchID string, req dto.EvaluationRequest, plan batchPlan) (dto.EvaluationReport, error) {
	ctx, span := s.tracer.Start(parent, "evaluation.batch", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.assignments", len(plan.assignments)),
	))
	defer span.End()

	observability.ActiveBatches().Inc()
	defer observability.ActiveBatches().Dec()

	logger := s.logger.With().Str("batch_id", batchID).Logger()
	tally := newBatchTally(batchID, plan.skipped, plan.notices)
	s.updateProgress(ctx, tally.snapshot(dto.BatchStateRunning))

	catalog, err := toolchain.LoadCatalog(ctx, s.configurations)
	if err != nil {
		return s.finish(ctx, span, tally, err)
	}
	resolver := toolchain.NewResolver(catalog, req.Selections)

	workers := req.Workers
	if workers <= 0 {
		workers = s.config.Workers
	}

	logger.Info().Int("assignments", len(plan.assignments)).Int("skipped", len(plan.skipped)).Int("workers", workers).Msg("evaluation batch started")

	for _, assignment := range plan.assignments {
		if ctx.Err() != nil {
			break
		}

		submissions, err := s.source.List(ctx, assignment.SubmissionsDir)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if plan.single {
				return s.finish(ctx, span, tally, fmt.Errorf("assignment %d: %w", assignment.ID, err))
			}
			tally.skip(dto.SkippedAssignment{AssignmentID: assignment.ID, Name: assignment.Name, Reason: err.Error()})
			logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("assignment skipped")
			continue
		}

		tally.begin(assignment.ID, len(submissions))
		s.updateProgress(ctx, tally.snapshot(dto.BatchStateRunning))

		if err := s.evaluateAssignment(ctx, batchID, assignment, submissions, resolver, workers, tally); err != nil {
			break
		}
	}

	return s.finish(ctx, span, tally, ctx.Err())
}

func (s *evaluationService) finish(ctx context.Context, span trace.Span, tally *batchTally, err error) (dto.EvaluationReport, error) {
	report := tally.complete(errors.Is(err, context.Canceled))

	state := dto.BatchStateCompleted
	outcome := "completed"
	switch {
	case report.Cancelled:
		state = dto.BatchStateCancelled
		outcome = "cancelled"
	case err != nil:
		state = dto.BatchStateFailed
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	observability.BatchDuration().WithLabelValues(outcome).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	snapshot := tally.snapshot(state)
	snapshot.Report = &report
	if err != nil && !report.Cancelled {
		snapshot.Error = err.Error()
	}
	s.updateProgress(context.WithoutCancel(ctx), snapshot)

	s.logger.Info().
		Str("batch_id", report.BatchID).
		Str("state", state).
		Int("evaluated", report.Evaluated).
		Int("matched", report.Matched).
		Int("failed", report.Failed).
		Int("skipped", len(report.Skipped)).
		Msg("evaluation batch finished")

	return report, err
}

func (s *evaluationService) evaluateAssignment(ctx context.Context, batchID string, assignment models.Assignment, submissions []Submission, resolver *toolchain.Resolver, workers int, tally *batchTally) error {
	if workers <= 1 {
		for _, submission := range submissions {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := s.evaluateSubmission(ctx, batchID, assignment, submission, resolver)
			if err != nil {
				return err
			}
			s.record(ctx, result, tally)
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, submission := range submissions {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			result, err := s.evaluateSubmission(groupCtx, batchID, assignment, submission, resolver)
			if err != nil {
				return err
			}
			s.record(groupCtx, result, tally)
			return nil
		})
	}
	return group.Wait()
}

// evaluateSubmission runs one submission through the pipeline. Every failure
// becomes a result; only cancellation is returned as an error.
func (s *evaluationService) evaluateSubmission(parent context.Context, batchID string, assignment models.Assignment, submission Submission, resolver *toolchain.Resolver) (models.EvaluationResult, error) {
	ctx, span := s.tracer.Start(parent, "evaluation.submission", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignment.ID)),
		attribute.String("student.id", submission.StudentID),
	))
	defer span.End()

	started := time.Now()
	run, err := s.pipeline.execute(ctx, resolver, pipelineInput{
		ArchivePath: submission.ArchivePath,
		Key:         fmt.Sprintf("%d-%s", assignment.ID, submission.StudentID),
		Args:        assignment.Args,
		Stdin:       assignment.Stdin,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.EvaluationResult{}, ctxErr
	}

	result := models.EvaluationResult{
		AssignmentID:   assignment.ID,
		StudentID:      submission.StudentID,
		BatchID:        batchID,
		ExpectedOutput: assignment.ExpectedOutput,
		Language:       run.Resolution.Language,
		ActualOutput:   run.Outcome.Stdout,
		ExitCode:       run.Outcome.ExitCode,
		DurationMs:     time.Since(started).Milliseconds(),
		Details:        resultDetails(run),
	}
	if run.Resolution.Configuration != nil {
		id := run.Resolution.Configuration.ID
		result.ConfigurationID = &id
	}

	if err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			stepErr = stepError(models.EvaluationStatusExecutionIOError, StageRunning, err.Error(), err)
		}
		result.Status = stepErr.Status
		result.FailedStage = stepErr.Stage
		result.Detail = stepErr.Detail
		span.SetAttributes(attribute.String("evaluation.status", string(result.Status)))
		return result, nil
	}

	verdict := CompareOutput(run.Outcome.Stdout, assignment.ExpectedOutput, assignment.Weight)
	result.Matched = verdict.Matched
	result.Score = verdict.Score
	result.Detail = run.Outcome.Stderr
	result.Status = models.EvaluationStatusMismatch
	if verdict.Matched {
		result.Status = models.EvaluationStatusSuccess
	}
	span.SetAttributes(attribute.String("evaluation.status", string(result.Status)))

	return result, nil
}

func resultDetails(run pipelineRun) datatypes.JSONMap {
	details := datatypes.JSONMap{}
	if run.Resolution.EntryPoint != "" {
		details["entry_point"] = run.Resolution.EntryPoint
	}
	if len(run.Resolution.Candidates) > 1 {
		details["candidates"] = candidatePaths(run.Resolution.Candidates)
	}
	if run.Outcome.CompileStderr != "" {
		details["compile_stderr"] = run.Outcome.CompileStderr
	}
	if run.Outcome.Stderr != "" {
		details["run_stderr"] = run.Outcome.Stderr
	}
	if run.Outcome.Truncated {
		details["output_truncated"] = true
	}
	return details
}

// record persists a verdict. A persistence failure is logged and the batch continues.
func (s *evaluationService) record(ctx context.Context, result models.EvaluationResult, tally *batchTally) {
	persistCtx := context.WithoutCancel(ctx)
	logger := s.logger.With().
		Str("batch_id", result.BatchID).
		Uint("assignment_id", result.AssignmentID).
		Str("student_id", result.StudentID).
		Logger()

	score := models.Score{AssignmentID: result.AssignmentID, StudentID: result.StudentID, Score: result.Score}
	if err := s.scores.Upsert(persistCtx, &score); err != nil {
		logger.Error().Err(err).Msg("failed to persist score")
	}
	if err := s.results.Upsert(persistCtx, &result); err != nil {
		logger.Error().Err(err).Msg("failed to persist evaluation result")
	}

	observability.Submissions().WithLabelValues(string(result.Status)).Inc()
	logger.Info().Str("status", string(result.Status)).Float64("score", result.Score).Msg("submission evaluated")

	s.updateProgress(persistCtx, tally.add(dto.NewSubmissionResult(result)))
}

func (s *evaluationService) updateProgress(ctx context.Context, progress dto.BatchProgress) {
	if s.progress == nil {
		return
	}
	s.progress.Update(ctx, progress)
}

// batchTally accumulates a report from concurrent workers.
type batchTally struct {
	mu       sync.Mutex
	report   dto.EvaluationReport
	total    int
	current  uint
	lastSeen string
}

func newBatchTally(batchID string, skipped []dto.SkippedAssignment, notices []dto.AssignmentNotice) *batchTally {
	return &batchTally{report: dto.EvaluationReport{
		BatchID:   batchID,
		Results:   []dto.SubmissionResult{},
		Skipped:   append(make([]dto.SkippedAssignment, 0, len(skipped)), skipped...),
		Notices:   append(make([]dto.AssignmentNotice, 0, len(notices)), notices...),
		StartedAt: time.Now().UTC(),
	}}
}

func (t *batchTally) begin(assignmentID uint, submissions int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = assignmentID
	t.total += submissions
}

func (t *batchTally) skip(skipped dto.SkippedAssignment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Skipped = append(t.report.Skipped, skipped)
}

func (t *batchTally) add(result dto.SubmissionResult) dto.BatchProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Results = append(t.report.Results, result)
	t.report.Evaluated++
	if result.Matched {
		t.report.Matched++
	}
	if !models.EvaluationStatus(result.Status).Evaluated() {
		t.report.Failed++
	}
	t.lastSeen = result.StudentID
	return t.snapshotLocked(dto.BatchStateRunning)
}

func (t *batchTally) complete(cancelled bool) dto.EvaluationReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Cancelled = cancelled
	t.report.FinishedAt = time.Now().UTC()
	report := t.report
	report.Results = append(make([]dto.SubmissionResult, 0, len(t.report.Results)), t.report.Results...)
	report.Skipped = append(make([]dto.SkippedAssignment, 0, len(t.report.Skipped)), t.report.Skipped...)
	return report
}

func (t *batchTally) snapshot(state string) dto.BatchProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(state)
}

func (t *batchTally) snapshotLocked(state string) dto.BatchProgress {
	return dto.BatchProgress{
		BatchID:             t.report.BatchID,
		State:               state,
		Total:               t.total,
		Processed:           t.report.Evaluated,
		Matched:             t.report.Matched,
		Failed:              t.report.Failed,
		CurrentAssignmentID: t.current,
		LastStudentID:       t.lastSeen,
		UpdatedAt:           time.Now().UTC(),
	}
}
