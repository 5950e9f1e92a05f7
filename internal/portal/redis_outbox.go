package portal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultOutboxKey is the Redis list holding queued writes.
const DefaultOutboxKey = "pecportal:outbox"

// RedisOutbox is an Outbox backed by a Redis list, so queued writes survive restarts.
type RedisOutbox struct {
	client *redis.Client
	key    string
}

// NewRedisOutbox constructs an outbox on key. An empty key uses DefaultOutboxKey.
func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	if key == "" {
		key = DefaultOutboxKey
	}
	return &RedisOutbox{client: client, key: key}
}

// Push appends w to the tail of the list.
func (o *RedisOutbox) Push(ctx context.Context, w PendingWrite) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode pending write: %w", err)
	}
	if err := o.client.RPush(ctx, o.key, data).Err(); err != nil {
		return fmt.Errorf("push pending write: %w", err)
	}
	return nil
}

// PopBatch pops up to n writes from the head of the list.
func (o *RedisOutbox) PopBatch(ctx context.Context, n int) ([]PendingWrite, error) {
	if n <= 0 {
		return nil, nil
	}
	values, err := o.client.LPopCount(ctx, o.key, n).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop pending writes: %w", err)
	}

	out := make([]PendingWrite, 0, len(values))
	for _, v := range values {
		var w PendingWrite
		if err := json.Unmarshal([]byte(v), &w); err != nil {
			// Undecodable entries can never be replayed.
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// Len returns the list length.
func (o *RedisOutbox) Len(ctx context.Context) (int, error) {
	n, err := o.client.LLen(ctx, o.key).Result()
	if err != nil {
		return 0, fmt.Errorf("outbox length: %w", err)
	}
	return int(n), nil
}
