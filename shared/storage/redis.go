package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const maxUpdateRetries = 10

var ErrConflict = errors.New("storage: too many concurrent updates")

// RedisStore keeps each document as a JSON string value.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

func (s *RedisStore) Save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Update uses WATCH/MULTI so a concurrent writer aborts the transaction, in
// which case the whole cycle is retried from a fresh read.
func (s *RedisStore) Update(ctx context.Context, key string, dest interface{}, fn func() error) error {
	txf := func(tx *redis.Tx) error {
		resetDest(dest)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, dest); err != nil {
				return err
			}
		}

		if err := fn(); err != nil {
			return err
		}

		encoded, err := json.Marshal(dest)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return ErrConflict
}
