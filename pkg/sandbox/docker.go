package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	backendDocker = "docker"
	stdinFileName = ".grader-stdin"
)

// DockerConfig groups container executor settings.
type DockerConfig struct {
	Host           string
	Timeout        time.Duration
	MemoryLimitMB  int64
	CPUShares      int64
	WorkingDir     string
	MaxOutputBytes int64
	Logger         zerolog.Logger
}

// DockerExecutor runs commands in throwaway containers with the request
// directory bind-mounted as the working directory.
type DockerExecutor struct {
	client *client.Client
	cfg    DockerConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a Docker backed executor.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/pkg/sandbox"),
		logger: cfg.Logger.With().Str("component", "docker_executor").Logger(),
	}, nil
}

// Run executes the request inside a network-less container.
func (e *DockerExecutor) Run(parent context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if req.Image == "" {
		return ExecutionResult{}, fmt.Errorf("%w: image is required", ErrSpawn)
	}
	if len(req.Cmd) == 0 {
		return ExecutionResult{}, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	ctx, span := e.tracer.Start(parent, "sandbox.docker.run", trace.WithAttributes(
		attribute.String("docker.image", req.Image),
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

	cmd := req.Cmd
	if req.Stdin != "" {
		stdinPath := filepath.Join(req.Dir, stdinFileName)
		if err := os.WriteFile(stdinPath, []byte(req.Stdin), 0o600); err != nil {
			return ExecutionResult{}, fmt.Errorf("%w: write stdin: %v", ErrSpawn, err)
		}
		defer os.Remove(stdinPath)
		cmd = withStdinFile(cmd, stdinFileName)
	}

	hostCfg := e.hostConfig(req)
	config := &container.Config{
		Image:           req.Image,
		Cmd:             cmd,
		Env:             req.Env,
		WorkingDir:      e.cfg.WorkingDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}

	start := time.Now()
	result := ExecutionResult{ExitCode: -1}

	resp, err := e.client.ContainerCreate(runCtx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return result, e.fail(span, fmt.Errorf("%w: container create: %v", ErrSpawn, err))
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		return result, e.fail(span, fmt.Errorf("%w: container start: %v", ErrSpawn, err))
	}

	statusCh, errCh := e.client.ContainerWait(runCtx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-runCtx.Done():
		waitErr = runCtx.Err()
	}

	result.Duration = time.Since(start)
	execDuration.WithLabelValues(backendDocker).Observe(result.Duration.Seconds())

	if runCtx.Err() != nil {
		e.kill(containerID)
	}

	e.collectLogs(containerID, req, &result)
	e.collectStats(containerID, &result)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "execution cancelled")
		return result, err
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		execTimeouts.WithLabelValues(backendDocker).Inc()
		span.SetStatus(codes.Error, "execution timed out")
		return result, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	if waitErr != nil {
		return result, e.fail(span, fmt.Errorf("container wait: %w", waitErr))
	}

	return result, nil
}

func (e *DockerExecutor) hostConfig(req ExecutionRequest) *container.HostConfig {
	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    req.MemoryLimitMB * 1024 * 1024,
			CPUShares: req.CPUShares,
		},
	}

	if req.Dir != "" {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: req.Dir,
			Target: e.cfg.WorkingDir,
		})
	}

	if hostCfg.Resources.Memory == 0 && e.cfg.MemoryLimitMB > 0 {
		hostCfg.Resources.Memory = e.cfg.MemoryLimitMB * 1024 * 1024
	}
	if hostCfg.Resources.CPUShares == 0 && e.cfg.CPUShares > 0 {
		hostCfg.Resources.CPUShares = e.cfg.CPUShares
	}

	return hostCfg
}

func (e *DockerExecutor) kill(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill container")
	}
}

func (e *DockerExecutor) collectLogs(containerID string, req ExecutionRequest, result *ExecutionResult) {
	logsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader, err := e.client.ContainerLogs(logsCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return
	}
	defer reader.Close()

	limit := req.MaxOutputBytes
	if limit <= 0 {
		limit = e.cfg.MaxOutputBytes
	}
	stdout, stderr, truncated, err := splitDockerLogs(reader, limit)
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		return
	}
	result.Stdout = stdout
	result.Stderr = stderr
	result.Truncated = truncated
}

func (e *DockerExecutor) collectStats(containerID string, result *ExecutionResult) {
	statsCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := e.client.ContainerStatsOneShot(statsCtx, containerID)
	if err != nil {
		return
	}
	defer stats.Body.Close()

	var data types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&data); err == nil {
		result.MemoryUsageBytes = int64(data.MemoryStats.Usage)
		result.CPUUsageNanosec = data.CPUStats.CPUUsage.TotalUsage
	}
}

func (e *DockerExecutor) fail(span trace.Span, err error) error {
	execFailures.WithLabelValues(backendDocker).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// withStdinFile wraps cmd so the container shell feeds it the staged stdin file.
func withStdinFile(cmd []string, file string) []string {
	wrapped := []string{"sh", "-c", `exec "$@" < ` + file, "sh"}
	return append(wrapped, cmd...)
}

func splitDockerLogs(reader io.Reader, limit int64) (string, string, bool, error) {
	stdout := newCappedBuffer(limit)
	stderr := newCappedBuffer(limit)
	if _, err := stdcopy.StdCopy(stdout, stderr, reader); err != nil {
		return "", "", false, err
	}
	return stdout.String(), stderr.String(), stdout.truncated || stderr.truncated, nil
}
