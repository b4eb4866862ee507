package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock serializes extraction runs per source with a Redis SETNX lease.
// A second run against a source that is already extracting must be rejected,
// not queued behind the first.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{rdb: rdb, ttl: ttl}
}

func lockKey(sourceID string) string {
	return fmt.Sprintf("extraction:lock:%s", sourceID)
}

// Acquire takes the per-source lock. It returns false when another run
// already holds it. The TTL bounds the damage of a crashed worker.
func (l *RunLock) Acquire(ctx context.Context, sourceID string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey(sourceID), time.Now().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock after a run completes or fails.
func (l *RunLock) Release(ctx context.Context, sourceID string) error {
	if err := l.rdb.Del(ctx, lockKey(sourceID)).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
