package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const backendProcess = "process"

// ProcessConfig groups host executor settings.
type ProcessConfig struct {
	Timeout        time.Duration
	MaxOutputBytes int64
	// WaitDelay bounds how long output pipes are drained after the process is killed.
	WaitDelay time.Duration
	Logger    zerolog.Logger
}

// ProcessExecutor runs commands directly on the host in their own process group.
type ProcessExecutor struct {
	cfg    ProcessConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewProcessExecutor constructs a host executor.
func NewProcessExecutor(cfg ProcessConfig) *ProcessExecutor {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 2 * time.Second
	}

	return &ProcessExecutor{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/pkg/sandbox"),
		logger: cfg.Logger.With().Str("component", "process_executor").Logger(),
	}
}

// Run starts the command and waits for it. On timeout or cancellation the
// whole process group is killed.
func (e *ProcessExecutor) Run(parent context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if len(req.Cmd) == 0 {
		return ExecutionResult{}, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	ctx, span := e.tracer.Start(parent, "sandbox.process.run", trace.WithAttributes(
		attribute.String("sandbox.program", filepath.Base(req.Cmd[0])),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	limit := req.MaxOutputBytes
	if limit <= 0 {
		limit = e.cfg.MaxOutputBytes
	}
	stdout := newCappedBuffer(limit)
	stderr := newCappedBuffer(limit)

	cmd := exec.CommandContext(runCtx, resolveProgram(req.Dir, req.Cmd[0]), req.Cmd[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), req.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}
	cmd.WaitDelay = e.cfg.WaitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		execFailures.WithLabelValues(backendProcess).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExecutionResult{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	waitErr := cmd.Wait()
	duration := time.Since(start)
	if err := killProcessGroup(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.Warn().Err(err).Str("program", req.Cmd[0]).Msg("failed to reap process group")
	} else if err == nil {
		e.logger.Debug().Str("program", req.Cmd[0]).Msg("killed processes left in group after exit")
	}
	execDuration.WithLabelValues(backendProcess).Observe(duration.Seconds())

	result := ExecutionResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  -1,
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "execution cancelled")
		return result, err
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		execTimeouts.WithLabelValues(backendProcess).Inc()
		span.SetStatus(codes.Error, "execution timed out")
		e.logger.Debug().Str("program", req.Cmd[0]).Dur("timeout", timeout).Msg("process group killed after timeout")
		return result, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) || errors.Is(waitErr, exec.ErrWaitDelay) {
			return result, nil
		}
		execFailures.WithLabelValues(backendProcess).Inc()
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, waitErr.Error())
		return result, fmt.Errorf("wait: %w", waitErr)
	}

	return result, nil
}

// resolveProgram anchors relative program paths such as ./main at dir.
func resolveProgram(dir, program string) string {
	if dir == "" || filepath.IsAbs(program) || !strings.ContainsRune(program, filepath.Separator) {
		return program
	}
	return filepath.Join(dir, program)
}
