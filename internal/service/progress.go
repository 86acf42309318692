package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
)

const (
	defaultProgressTTL    = time.Hour
	defaultProgressPrefix = "grader:batch:"
)

// ProgressTracker stores batch snapshots and broadcasts them.
type ProgressTracker interface {
	Update(ctx context.Context, progress dto.BatchProgress)
	Get(ctx context.Context, batchID string) (dto.BatchProgress, error)
}

type progressTracker struct {
	redis   *redis.Client
	nats    *nats.Conn
	subject string
	ttl     time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	local map[string]dto.BatchProgress
}

// NewProgressTracker keeps snapshots in Redis when a client is given and in
// process memory otherwise. Every update is also published on
// <subject>.<batch_id> when a NATS connection is given.
func NewProgressTracker(redisClient *redis.Client, natsConn *nats.Conn, subject string, ttl time.Duration, logger zerolog.Logger) ProgressTracker {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}

	return &progressTracker{
		redis:   redisClient,
		nats:    natsConn,
		subject: subject,
		ttl:     ttl,
		logger:  logger.With().Str("component", "progress_tracker").Logger(),
		local:   make(map[string]dto.BatchProgress),
	}
}

func (t *progressTracker) Update(ctx context.Context, progress dto.BatchProgress) {
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now().UTC()
	}

	t.mu.Lock()
	t.local[progress.BatchID] = progress
	t.pruneLocked(progress.UpdatedAt)
	t.mu.Unlock()

	payload, err := json.Marshal(progress)
	if err != nil {
		t.logger.Warn().Err(err).Str("batch_id", progress.BatchID).Msg("failed to encode batch progress")
		return
	}

	if t.redis != nil {
		if err := t.redis.Set(ctx, progressKey(progress.BatchID), payload, t.ttl).Err(); err != nil {
			t.logger.Warn().Err(err).Str("batch_id", progress.BatchID).Msg("failed to store batch progress")
		}
	}

	if t.nats != nil && t.subject != "" {
		if err := t.nats.Publish(t.subject+"."+progress.BatchID, payload); err != nil {
			t.logger.Warn().Err(err).Str("batch_id", progress.BatchID).Msg("failed to publish batch progress")
		}
	}
}

func (t *progressTracker) Get(ctx context.Context, batchID string) (dto.BatchProgress, error) {
	if t.redis != nil {
		cached, err := t.redis.Get(ctx, progressKey(batchID)).Result()
		if err == nil {
			var progress dto.BatchProgress
			if err := json.Unmarshal([]byte(cached), &progress); err != nil {
				return dto.BatchProgress{}, err
			}
			return progress, nil
		}
		if !errors.Is(err, redis.Nil) {
			t.logger.Warn().Err(err).Str("batch_id", batchID).Msg("failed to read batch progress")
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	progress, ok := t.local[batchID]
	if !ok {
		return dto.BatchProgress{}, ErrBatchNotFound
	}
	return progress, nil
}

func (t *progressTracker) pruneLocked(now time.Time) {
	for id, progress := range t.local {
		if progress.State != dto.BatchStateRunning && now.Sub(progress.UpdatedAt) > t.ttl {
			delete(t.local, id)
		}
	}
}

func progressKey(batchID string) string {
	return defaultProgressPrefix + batchID
}
