package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "docverify/pkg/domain"
)

// Guard short-circuits concurrent enqueue attempts for one submission before they reach
// the store. The store stays the source of truth; a guard only saves work.
type Guard interface {
	// Acquire returns false when another attempt holds the submission.
	Acquire(ctx context.Context, submissionID id.SubmissionID) (bool, error)
	// Release lets a later attempt through after a failed one.
	Release(ctx context.Context, submissionID id.SubmissionID) error
}

const guardKeyPrefix = "moderation:enqueue:"

// RedisGuard marks in-flight or completed submissions with SET NX and a TTL.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, submissionID id.SubmissionID) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKeyPrefix+submissionID.String(), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire enqueue guard: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, submissionID id.SubmissionID) error {
	if err := g.client.Del(ctx, guardKeyPrefix+submissionID.String()).Err(); err != nil {
		return fmt.Errorf("release enqueue guard: %w", err)
	}
	return nil
}
