package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss indicates the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

const opTimeout = 5 * time.Second

// RedisClient wraps redis.Client with JSON value encoding and a bounded
// per-operation timeout.
type RedisClient struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisClient creates a new Redis client. Returns nil when the server
// is unreachable; callers treat a nil client as "caching disabled".
func NewRedisClient(host, port, password string, log *zap.Logger) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("failed to connect to redis, caching disabled",
			zap.String("addr", addr), zap.Error(err))
		return nil
	}

	log.Info("connected to redis", zap.String("addr", addr))
	return &RedisClient{client: client, log: log}
}

// NewFromClient wraps an existing redis client, used by tests with redismock.
func NewFromClient(client *redis.Client, log *zap.Logger) *RedisClient {
	return &RedisClient{client: client, log: log}
}

// Set stores a JSON-encoded value with expiration.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Set(opCtx, key, jsonBytes, expiration).Err()
}

// Get retrieves a value and unmarshals it into dest. ErrCacheMiss when the
// key does not exist.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := r.client.Get(opCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete removes keys from Redis.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if len(keys) == 0 {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Del(opCtx, keys...).Err()
}

// Exists checks if a key exists in Redis.
func (r *RedisClient) Exists(ctx context.Context, key string) bool {
	if r == nil || r.client == nil {
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.client.Exists(opCtx, key).Result()
	if err != nil {
		return false
	}
	return result > 0
}

// Publish sends a JSON-encoded message to a channel.
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Publish(opCtx, channel, jsonBytes).Err()
}

// Subscribe subscribes to a channel.
func (r *RedisClient) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Subscribe(ctx, channel)
}

// Ping checks if the Redis connection is alive.
func (r *RedisClient) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Ping(opCtx).Err()
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}
