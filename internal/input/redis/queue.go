// Package redis is the list-backed queue raw sensor hits travel through
// between the shipper and the ingest loop.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis queue.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// Queue wraps a Redis list used as a FIFO of raw hit payloads.
type Queue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &Queue{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Pop blocks for one payload. It returns nil, nil when the wait times out.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	res, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Push appends payloads to the tail of the list in one round trip.
func (q *Queue) Push(ctx context.Context, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	values := make([]interface{}, len(payloads))
	for i, p := range payloads {
		values[i] = p
	}
	if err := q.client.RPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("push %d payloads to %s: %w", len(payloads), q.key, err)
	}
	return nil
}

// Len reports the queue backlog.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close closes the client.
func (q *Queue) Close() error {
	return q.client.Close()
}
