package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/toolchain"
	"github.com/noah-isme/gema-grader/pkg/sandbox"
)

// Default limits for the two build phases.
const (
	DefaultCompileTimeout = 30 * time.Second
	DefaultRunTimeout     = 10 * time.Second
)

// BuildRequest describes one compile-and-run of an extracted submission.
type BuildRequest struct {
	Dir        string
	EntryPoint string
	Language   string
	ToolPath   string
	Args       string
	Stdin      string
}

// BuildOutcome carries the run phase output. It is also returned, partially
// filled, alongside run-phase errors.
type BuildOutcome struct {
	Stdout        string
	Stderr        string
	CompileStderr string
	ExitCode      int
	Duration      time.Duration
	Truncated     bool
}

// BuildRunnerConfig configures the compile and run phases.
type BuildRunnerConfig struct {
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MaxOutputBytes int64
	// Containerized runs the conventional binary name inside a per-language image
	// instead of the configured host path.
	Containerized bool
	Images        map[string]string
	MemoryLimitMB int64
	CPUShares     int64
}

// BuildRunner compiles and runs submissions.
type BuildRunner interface {
	Run(ctx context.Context, req BuildRequest) (BuildOutcome, error)
}

type buildRunner struct {
	executor sandbox.Executor
	cfg      BuildRunnerConfig
	logger   zerolog.Logger
}

// NewBuildRunner constructs a build runner on top of an executor.
func NewBuildRunner(executor sandbox.Executor, cfg BuildRunnerConfig, logger zerolog.Logger) BuildRunner {
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = DefaultCompileTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = sandbox.DefaultMaxOutputBytes
	}

	return &buildRunner{
		executor: executor,
		cfg:      cfg,
		logger:   logger.With().Str("component", "build_runner").Logger(),
	}
}

func (r *buildRunner) Run(ctx context.Context, req BuildRequest) (BuildOutcome, error) {
	spec, err := toolchain.Lookup(req.Language)
	if err != nil {
		return BuildOutcome{}, stepError(models.EvaluationStatusUnsupportedLanguage, StageResolving, req.Language, err)
	}

	args, err := shlex.Split(req.Args)
	if err != nil {
		return BuildOutcome{}, stepError(models.EvaluationStatusExecutionIOError, StageRunning, fmt.Sprintf("invalid arguments %q: %v", req.Args, err), fmt.Errorf("%w: %v", ErrExecutionIO, err))
	}

	toolPath := req.ToolPath
	if r.cfg.Containerized {
		toolPath = filepath.Base(toolPath)
	}
	plan := spec.Plan(toolPath, req.EntryPoint)

	var outcome BuildOutcome
	if plan.Compile != nil {
		result, err := r.executor.Run(ctx, r.request(req, spec.Language, *plan.Compile, nil, "", r.cfg.CompileTimeout))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}
		outcome.CompileStderr = result.Stderr
		switch {
		case errors.Is(err, sandbox.ErrTimeout):
			detail := joinDetail(fmt.Sprintf("compilation timed out after %s", r.cfg.CompileTimeout), result.Stderr)
			return outcome, stepError(models.EvaluationStatusCompilationFailed, StageBuilding, detail, fmt.Errorf("%w: %v", ErrCompilationFailed, err))
		case err != nil:
			return outcome, stepError(models.EvaluationStatusExecutionIOError, StageBuilding, err.Error(), fmt.Errorf("%w: %v", ErrExecutionIO, err))
		case result.ExitCode != 0:
			return outcome, stepError(models.EvaluationStatusCompilationFailed, StageBuilding, result.Stderr, fmt.Errorf("%w: exit status %d", ErrCompilationFailed, result.ExitCode))
		}
		r.logger.Debug().Str("language", spec.Language).Dur("duration", result.Duration).Msg("compiled submission")
	}

	result, err := r.executor.Run(ctx, r.request(req, spec.Language, plan.Run, args, req.Stdin, r.cfg.RunTimeout))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, ctxErr
	}

	outcome.Stdout = result.Stdout
	outcome.Stderr = result.Stderr
	outcome.ExitCode = result.ExitCode
	outcome.Duration = result.Duration
	outcome.Truncated = result.Truncated

	switch {
	case errors.Is(err, sandbox.ErrTimeout):
		detail := joinDetail(fmt.Sprintf("execution timed out after %s", r.cfg.RunTimeout), result.Stderr)
		return outcome, stepError(models.EvaluationStatusExecutionTimeout, StageRunning, detail, fmt.Errorf("%w: %v", ErrExecutionTimeout, err))
	case err != nil:
		return outcome, stepError(models.EvaluationStatusExecutionIOError, StageRunning, err.Error(), fmt.Errorf("%w: %v", ErrExecutionIO, err))
	}

	return outcome, nil
}

func (r *buildRunner) request(req BuildRequest, language string, step toolchain.Step, extra []string, stdin string, timeout time.Duration) sandbox.ExecutionRequest {
	cmd := make([]string, 0, 1+len(step.Args)+len(extra))
	cmd = append(cmd, step.Path)
	cmd = append(cmd, step.Args...)
	cmd = append(cmd, extra...)

	execReq := sandbox.ExecutionRequest{
		Cmd:            cmd,
		Dir:            req.Dir,
		Stdin:          stdin,
		Timeout:        timeout,
		MaxOutputBytes: r.cfg.MaxOutputBytes,
	}
	if r.cfg.Containerized {
		execReq.Image = r.cfg.Images[language]
		execReq.MemoryLimitMB = r.cfg.MemoryLimitMB
		execReq.CPUShares = r.cfg.CPUShares
	}
	return execReq
}

func joinDetail(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
