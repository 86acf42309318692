package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/toolchain"
	"github.com/noah-isme/gema-grader/pkg/archive"
)

// ArchiveExtractor unpacks archives into unique scratch directories.
type ArchiveExtractor interface {
	Extract(ctx context.Context, archivePath, key string) (archive.Extraction, error)
	Cleanup(extraction archive.Extraction)
}

// Pipeline bundles the stages shared by batch evaluation and reference runs.
type Pipeline struct {
	Extractor ArchiveExtractor
	Runner    BuildRunner
	// KeepWorkspaces leaves extraction directories on disk for inspection.
	KeepWorkspaces bool
}

type pipelineInput struct {
	ArchivePath string
	Key         string
	Args        string
	Stdin       string
}

type pipelineRun struct {
	Resolution toolchain.Resolution
	Outcome    BuildOutcome
}

// execute extracts, resolves, builds and runs one archive. Failures are
// returned as *StepError; cancellation is returned as the context error.
func (p Pipeline) execute(ctx context.Context, resolver *toolchain.Resolver, input pipelineInput) (pipelineRun, error) {
	var run pipelineRun

	extraction, err := p.Extractor.Extract(ctx, input.ArchivePath, input.Key)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return run, ctxErr
	}
	if err != nil {
		if errors.Is(err, archive.ErrInvalidArchive) {
			return run, stepError(models.EvaluationStatusInvalidArchive, StageExtracting, err.Error(), err)
		}
		return run, stepError(models.EvaluationStatusExtractionIOError, StageExtracting, err.Error(), err)
	}
	if !p.KeepWorkspaces {
		defer p.Extractor.Cleanup(extraction)
	}

	resolution, err := resolver.Resolve(extraction.Files)
	run.Resolution = resolution
	switch {
	case errors.Is(err, toolchain.ErrNoEntryPointFound):
		detail := fmt.Sprintf("none of %s found", strings.Join(toolchain.EntryPointPatterns(), ", "))
		return run, stepError(models.EvaluationStatusNoEntryPoint, StageResolving, detail, err)
	case errors.Is(err, toolchain.ErrUnsupportedLanguage):
		return run, stepError(models.EvaluationStatusUnsupportedLanguage, StageResolving, resolution.EntryPoint, err)
	case err != nil:
		return run, stepError(models.EvaluationStatusExecutionIOError, StageResolving, err.Error(), err)
	}

	switch resolution.Outcome {
	case toolchain.OutcomeUnconfigured:
		detail := fmt.Sprintf("no toolchain configured for %s", resolution.Language)
		return run, stepError(models.EvaluationStatusUnconfiguredLanguage, StageResolving, detail, nil)
	case toolchain.OutcomeAmbiguous:
		detail := fmt.Sprintf("%d toolchains configured for %s: %s", len(resolution.Candidates), resolution.Language, strings.Join(candidatePaths(resolution.Candidates), ", "))
		return run, stepError(models.EvaluationStatusAmbiguousConfiguration, StageResolving, detail, nil)
	}

	outcome, err := p.Runner.Run(ctx, BuildRequest{
		Dir:        extraction.Dir,
		EntryPoint: resolution.EntryPoint,
		Language:   resolution.Language,
		ToolPath:   resolution.Configuration.Path,
		Args:       input.Args,
		Stdin:      input.Stdin,
	})
	run.Outcome = outcome
	return run, err
}

func candidatePaths(candidates []models.Configuration) []string {
	paths := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		paths = append(paths, candidate.Path)
	}
	return paths
}
