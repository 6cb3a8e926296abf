package redisStore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 10

var ErrKeyNotFound = errors.New("key not found")

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return s.client.MGet(ctx, keys...).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) ListPush(ctx context.Context, key string, value interface{}) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (s *Store) ListGetAll(ctx context.Context, key string) ([]string, error) {
	return s.client.LRange(ctx, key, 0, -1).Result()
}

// SetIndexed writes key and adds member to every index set in one MULTI.
func (s *Store) SetIndexed(ctx context.Context, key string, value interface{}, member string, indexKeys ...string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		for _, idx := range indexKeys {
			pipe.SAdd(ctx, idx, member)
		}
		return nil
	})
	return err
}

// DelIndexed removes keys and drops member from every index set in one MULTI.
func (s *Store) DelIndexed(ctx context.Context, keys []string, member string, indexKeys ...string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, idx := range indexKeys {
			pipe.SRem(ctx, idx, member)
		}
		return nil
	})
	return err
}

// Update applies fn to the current value of key under WATCH, retrying on
// concurrent modification. fn must be side-effect free.
func (s *Store) Update(ctx context.Context, key string, fn func(current string) (string, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: too many concurrent writers", key)
}

// MoveMember moves member from one set to another atomically.
func (s *Store) MoveMember(ctx context.Context, from, to, member string) error {
	return s.client.SMove(ctx, from, to, member).Err()
}

// Expire sets a ttl on key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}
