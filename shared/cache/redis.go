package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"gear-rental/shared/config"
)

// ErrDisabled is returned by every helper when Redis was not configured or
// could not be reached at startup.
var ErrDisabled = errors.New("cache: redis disabled")

// ErrMiss reports a key that is not cached.
var ErrMiss = errors.New("cache: miss")

var Client *redis.Client

// Initialize connects to Redis. On failure Client stays nil and callers run
// uncached.
func Initialize(cfg *config.Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.MaxConnections,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		Client = nil
		return fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}

	Client = client
	zap.S().Infow("Redis connection established", "addr", client.Options().Addr, "db", cfg.Redis.DB)
	return nil
}

func Enabled() bool {
	return Client != nil
}

func Ping(ctx context.Context) error {
	if Client == nil {
		return ErrDisabled
	}
	return Client.Ping(ctx).Err()
}

// Set stores value as JSON under key.
func Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if Client == nil {
		return ErrDisabled
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return Client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the JSON stored under key into dest. A missing key is ErrMiss.
func Get(ctx context.Context, key string, dest interface{}) error {
	if Client == nil {
		return ErrDisabled
	}
	data, err := Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func Delete(ctx context.Context, keys ...string) error {
	if Client == nil {
		return ErrDisabled
	}
	return Client.Del(ctx, keys...).Err()
}

// Remember returns the cached value for key, or calls load and caches its
// result for ttl. Cache failures are logged and never fail the call.
func Remember[T any](ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) && !errors.Is(err, ErrDisabled) {
		zap.S().Warnw("cache read failed", "key", key, "error", err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := Set(ctx, key, value, ttl); err != nil && !errors.Is(err, ErrDisabled) {
		zap.S().Warnw("cache write failed", "key", key, "error", err)
	}
	return value, nil
}

func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
