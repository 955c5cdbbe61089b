package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authsession:sess:"

// RedisBackend stores each session bag as a Redis hash with a sliding TTL.
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisBackend returns a backend over client. Bags expire after ttl without writes.
func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// Open returns the bag for id. Ids with no stored hash are replaced by a new id so a
// client-chosen id is never adopted.
func (b *RedisBackend) Open(ctx context.Context, id string) (Store, error) {
	if id != "" {
		n, err := b.client.Exists(ctx, redisKeyPrefix+id).Result()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return &RedisStore{backend: b, id: id}, nil
		}
	}
	nid, err := newID()
	if err != nil {
		return nil, err
	}
	return &RedisStore{backend: b, id: nid}, nil
}

// RedisStore is a Store backed by a RedisBackend.
type RedisStore struct {
	backend *RedisBackend
	id      string
}

func (s *RedisStore) key() string { return redisKeyPrefix + s.id }

func (s *RedisStore) ID() string { return s.id }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.backend.client.HGet(ctx, s.key(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	_, err := s.backend.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key(), key, value)
		p.Expire(ctx, s.key(), s.backend.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.backend.client.HDel(ctx, s.key(), key).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.backend.client.Del(ctx, s.key()).Err()
}

func (s *RedisStore) RegenerateID(ctx context.Context) error {
	nid, err := newID()
	if err != nil {
		return err
	}
	// RENAME fails on a missing key; an empty bag has nothing to move.
	err = s.backend.client.Rename(ctx, s.key(), redisKeyPrefix+nid).Err()
	if err != nil && !isNoSuchKey(err) {
		return err
	}
	s.id = nid
	return nil
}

func isNoSuchKey(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && rerr.Error() == "ERR no such key"
}
