package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coin-pulse/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisStore is a Store shared across processes. Keys are written without a
// TTL, matching the never-evicted lifetime of the in-process store.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logrus.Entry
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return newRedisStore(client, cfg.KeyPrefix, logger), nil
}

func newRedisStore(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.WithField("component", "redis"),
	}
}

// Get implements Store
func (rs *RedisStore) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := rs.client.Get(ctx, rs.prefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		rs.logger.WithError(err).WithField("key", key).Warn("Dropping undecodable cache entry")
		return false, nil
	}
	return true, nil
}

// Set implements Store
func (rs *RedisStore) Set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return rs.client.Set(ctx, rs.prefix+key, data, 0).Err()
}

// Health checks Redis health
func (rs *RedisStore) Health(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
