package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// completionChannel is the pub/sub channel where finished runs are
// announced.
const completionChannel = "eval:runs:done"

// unitsKey is the list holding pending units for one evaluator.
func unitsKey(evaluator string) string {
	return fmt.Sprintf("eval:units:%s", evaluator)
}

// resultsKey is the list holding finished results for one run.
func resultsKey(runID string) string {
	return fmt.Sprintf("eval:results:%s", runID)
}

// Client is the transport for distributing evaluation units to workers and
// collecting their results.
type Client interface {
	// Push queues a unit on its evaluator's queue (LPUSH). The unit is
	// validated first so malformed work never reaches a worker.
	Push(ctx context.Context, u Unit) error

	// Pop removes and returns the next unit from an evaluator's queue
	// (BRPOP). Blocks until a unit is available or the context ends.
	Pop(ctx context.Context, evaluator string) (*Unit, error)

	// PopAny removes and returns the next unit from whichever of the
	// given evaluators' queues has one (multi-key BRPOP). Blocks until a
	// unit is available or the context ends.
	PopAny(ctx context.Context, evaluators []string) (*Unit, error)

	// Len reports how many units wait on an evaluator's queue.
	Len(ctx context.Context, evaluator string) (int64, error)

	// PushResult appends a validated result to its run's results list.
	PushResult(ctx context.Context, r Result) error

	// PopResult removes and returns the next result for a run. Blocks
	// until a result is available or the context ends.
	PopResult(ctx context.Context, runID string) (*Result, error)

	// Announce publishes a run-completion notice.
	Announce(ctx context.Context, runID string) error

	// Completions subscribes to run-completion notices. The returned
	// channel yields run IDs until the context ends.
	Completions(ctx context.Context) (<-chan string, error)

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient implements the Client interface using go-redis/v9.
type RedisClient struct {
	client *redis.Client
}

var _ Client = (*RedisClient)(nil)

// NewRedisClient creates a new Redis queue client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Push queues a unit on its evaluator's queue.
func (c *RedisClient) Push(ctx context.Context, u Unit) error {
	if err := u.IsValid(); err != nil {
		return fmt.Errorf("invalid unit: %w", err)
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal unit: %w", err)
	}

	key := unitsKey(u.Evaluator)
	if err := c.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", key, err)
	}

	return nil
}

// Pop removes and returns the next unit from an evaluator's queue.
func (c *RedisClient) Pop(ctx context.Context, evaluator string) (*Unit, error) {
	key := unitsKey(evaluator)

	// BRPOP returns [key, value] or redis.Nil on timeout.
	result, err := c.client.BRPop(ctx, 0, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", key, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var u Unit
	if err := json.Unmarshal([]byte(result[1]), &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unit: %w", err)
	}

	return &u, nil
}

// PopAny removes and returns the next unit from whichever of the given
// evaluators' queues has one. BRPOP checks the keys in order, so earlier
// evaluators win when several queues are non-empty.
func (c *RedisClient) PopAny(ctx context.Context, evaluators []string) (*Unit, error) {
	if len(evaluators) == 0 {
		return nil, fmt.Errorf("no evaluator queues to pop from")
	}

	keys := make([]string, len(evaluators))
	for i, ev := range evaluators {
		keys[i] = unitsKey(ev)
	}

	result, err := c.client.BRPop(ctx, 0, keys...).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queues %v: %w", keys, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var u Unit
	if err := json.Unmarshal([]byte(result[1]), &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unit: %w", err)
	}

	return &u, nil
}

// Len reports how many units wait on an evaluator's queue.
func (c *RedisClient) Len(ctx context.Context, evaluator string) (int64, error) {
	n, err := c.client.LLen(ctx, unitsKey(evaluator)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to measure queue %s: %w", unitsKey(evaluator), err)
	}
	return n, nil
}

// PushResult appends a result to its run's results list.
func (c *RedisClient) PushResult(ctx context.Context, r Result) error {
	if err := r.IsValid(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := resultsKey(r.RunID)
	if err := c.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to push result to %s: %w", key, err)
	}

	return nil
}

// PopResult removes and returns the next result for a run.
func (c *RedisClient) PopResult(ctx context.Context, runID string) (*Result, error) {
	key := resultsKey(runID)

	result, err := c.client.BRPop(ctx, 0, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop result from %s: %w", key, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var r Result
	if err := json.Unmarshal([]byte(result[1]), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &r, nil
}

// Announce publishes a run-completion notice.
func (c *RedisClient) Announce(ctx context.Context, runID string) error {
	if err := c.client.Publish(ctx, completionChannel, runID).Err(); err != nil {
		return fmt.Errorf("failed to announce run %s: %w", runID, err)
	}
	return nil
}

// Completions subscribes to run-completion notices.
func (c *RedisClient) Completions(ctx context.Context) (<-chan string, error) {
	pubsub := c.client.Subscribe(ctx, completionChannel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", completionChannel, err)
	}

	runIDs := make(chan string)

	go func() {
		defer close(runIDs)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				select {
				case runIDs <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return runIDs, nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
