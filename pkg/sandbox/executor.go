package sandbox

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMaxOutputBytes caps each captured stream when a request sets no limit.
const DefaultMaxOutputBytes = 1 << 20

// ErrTimeout indicates the process was killed after exceeding its time limit.
var ErrTimeout = errors.New("execution timed out")

// ErrSpawn indicates the process could not be started.
var ErrSpawn = errors.New("failed to start process")

var (
	execDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "executor",
		Name:      "execution_duration_seconds",
		Help:      "Duration of sandboxed executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})

	execTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "executor",
		Name:      "execution_timeouts_total",
		Help:      "Number of executions that hit the timeout",
	}, []string{"backend"})

	execFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "executor",
		Name:      "execution_failures_total",
		Help:      "Number of executions that could not be started or awaited",
	}, []string{"backend"})
)

// Executor runs one command to completion.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// ExecutionRequest describes one command run inside a working directory.
// Cmd[0] is either a program path or a path relative to Dir.
type ExecutionRequest struct {
	Cmd            []string
	Dir            string
	Stdin          string
	Env            []string
	Timeout        time.Duration
	MaxOutputBytes int64

	// Container-only settings.
	Image         string
	MemoryLimitMB int64
	CPUShares     int64
}

// ExecutionResult summarises a finished command. A non-zero ExitCode is not an error.
type ExecutionResult struct {
	Stdout           string
	Stderr           string
	ExitCode         int
	Duration         time.Duration
	TimedOut         bool
	Truncated        bool
	MemoryUsageBytes int64
	CPUUsageNanosec  uint64
}

// cappedBuffer keeps at most limit bytes and silently discards the rest so a
// chatty program cannot block on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func newCappedBuffer(limit int64) *cappedBuffer {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.truncated = true
		b.buf.Write(p[:remaining])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
