package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/session/domain/repository"
	"tenant-portal/internal/shared/logger"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots as JSON strings with an expiry
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisStore creates a Redis-backed snapshot store. A zero ttl keeps snapshots forever.
func NewRedisStore(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: log.WithComponent("session_redis_store"),
	}
}

// Load returns the snapshot stored under key
func (r *RedisStore) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrSnapshotNotFound
	}
	if err != nil {
		r.logger.Errorf("Failed to load snapshot %s: %v", key, err)
		return nil, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save stores snapshot under key, refreshing its expiry
func (r *RedisStore) Save(ctx context.Context, key string, snapshot *model.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Errorf("Failed to save snapshot %s: %v", key, err)
		return err
	}
	return nil
}

// Delete removes the snapshot stored under key
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
