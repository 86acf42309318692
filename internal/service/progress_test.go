package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/dto"
)

func TestProgressTrackerStoresSnapshotsInRedis(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tracker := NewProgressTracker(client, nil, "grader.evaluations", time.Minute, zerolog.Nop())
	tracker.Update(context.Background(), dto.BatchProgress{BatchID: "batch-1", State: dto.BatchStateRunning, Total: 3, Processed: 1})

	require.True(t, server.Exists("grader:batch:batch-1"))
	require.Equal(t, time.Minute, server.TTL("grader:batch:batch-1"))

	progress, err := tracker.Get(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Equal(t, 3, progress.Total)
	require.Equal(t, 1, progress.Processed)
	require.False(t, progress.UpdatedAt.IsZero())

	_, err = tracker.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrBatchNotFound))
}

func TestProgressTrackerFallsBackToLocalSnapshots(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tracker := NewProgressTracker(client, nil, "", time.Minute, zerolog.Nop())
	tracker.Update(context.Background(), dto.BatchProgress{BatchID: "batch-2", State: dto.BatchStateCompleted})

	server.FlushAll()

	progress, err := tracker.Get(context.Background(), "batch-2")
	require.NoError(t, err)
	require.Equal(t, dto.BatchStateCompleted, progress.State)
}

func TestProgressTrackerWithoutRedis(t *testing.T) {
	tracker := NewProgressTracker(nil, nil, "", time.Hour, zerolog.Nop())
	tracker.Update(context.Background(), dto.BatchProgress{BatchID: "local", State: dto.BatchStateRunning})

	progress, err := tracker.Get(context.Background(), "local")
	require.NoError(t, err)
	require.Equal(t, dto.BatchStateRunning, progress.State)
}

func TestProgressTrackerPrunesFinishedBatches(t *testing.T) {
	tracker := NewProgressTracker(nil, nil, "", time.Minute, zerolog.Nop())
	old := time.Now().Add(-2 * time.Minute)
	tracker.Update(context.Background(), dto.BatchProgress{BatchID: "old-done", State: dto.BatchStateCompleted, UpdatedAt: old})
	tracker.Update(context.Background(), dto.BatchProgress{BatchID: "old-running", State: dto.BatchStateRunning, UpdatedAt: old})
	tracker.Update(context.Background(), dto.BatchProgress{BatchID: "fresh", State: dto.BatchStateRunning})

	_, err := tracker.Get(context.Background(), "old-done")
	require.True(t, errors.Is(err, ErrBatchNotFound))
	_, err = tracker.Get(context.Background(), "old-running")
	require.NoError(t, err)
}
