package targets

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rosterwatch/pkg/domain"
)

// DefaultRedisKey is the sorted set holding the queue.
const DefaultRedisKey = "rosterwatch:targets"

// RedisQueue keeps the queue in a Redis sorted set scored by an insertion
// sequence. Each operation is a single server-side command, so several
// watchers can share one queue.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisQueue wraps client. An empty key uses DefaultRedisKey.
func NewRedisQueue(client redis.UniversalClient, key string) (*RedisQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) seqKey() string {
	return q.key + ":seq"
}

func (q *RedisQueue) Append(ctx context.Context, id domain.Identifier) (bool, error) {
	if id.IsZero() {
		return false, nil
	}
	seq, err := q.client.Incr(ctx, q.seqKey()).Result()
	if err != nil {
		return false, fmt.Errorf("next queue sequence: %w", err)
	}
	added, err := q.client.ZAddNX(ctx, q.key, redis.Z{Score: float64(seq), Member: id.String()}).Result()
	if err != nil {
		return false, fmt.Errorf("append %s: %w", id, err)
	}
	return added == 1, nil
}

func (q *RedisQueue) Remove(ctx context.Context, id domain.Identifier) (bool, error) {
	removed, err := q.client.ZRem(ctx, q.key, id.String()).Result()
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	return removed == 1, nil
}

func (q *RedisQueue) Contains(ctx context.Context, id domain.Identifier) (bool, error) {
	err := q.client.ZScore(ctx, q.key, id.String()).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("contains %s: %w", id, err)
	}
	return true, nil
}

func (q *RedisQueue) Snapshot(ctx context.Context) ([]domain.Identifier, error) {
	members, err := q.client.ZRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot queue: %w", err)
	}
	out := make([]domain.Identifier, 0, len(members))
	for _, m := range members {
		out = append(out, domain.Identifier(m))
	}
	return out, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return int(n), nil
}

// Clear drops the queue. The watcher only calls it at startup when asked to
// reset, since other watchers may share the key.
func (q *RedisQueue) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key, q.seqKey()).Err(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}
