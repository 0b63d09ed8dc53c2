package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// jobQueue is the storage behind the job manager: an immediate list, a set of
// jobs scheduled for later and a short-lived result record per job.
type jobQueue interface {
	push(ctx context.Context, data []byte) error
	schedule(ctx context.Context, data []byte, at time.Time) error
	// pop blocks up to timeout and returns nil when nothing arrived.
	pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	// promote moves scheduled jobs that are due into the immediate list.
	promote(ctx context.Context, now time.Time) (int, error)
	storeResult(ctx context.Context, id string, data []byte, ttl time.Duration) error
}

type redisQueue struct {
	client       *redis.Client
	queueKey     string
	scheduledKey string
	resultPrefix string
}

func newRedisQueue(client *redis.Client, prefix string) *redisQueue {
	return &redisQueue{
		client:       client,
		queueKey:     prefix + ":queue",
		scheduledKey: prefix + ":scheduled",
		resultPrefix: prefix + ":result:",
	}
}

func (q *redisQueue) push(ctx context.Context, data []byte) error {
	return q.client.LPush(ctx, q.queueKey, data).Err()
}

func (q *redisQueue) schedule(ctx context.Context, data []byte, at time.Time) error {
	return q.client.ZAdd(ctx, q.scheduledKey, &redis.Z{
		Score:  float64(at.Unix()),
		Member: string(data),
	}).Err()
}

func (q *redisQueue) pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (q *redisQueue) promote(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, member := range members {
		// Only the caller that removes the member re-queues it.
		removed, err := q.client.ZRem(ctx, q.scheduledKey, member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.queueKey, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (q *redisQueue) storeResult(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return q.client.Set(ctx, q.resultPrefix+id, data, ttl).Err()
}
