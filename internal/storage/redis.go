package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"voice-softphone/internal/users"
)

// RedisStore keeps login state in a local Redis so it survives restarts.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore namespaces every key under prefix, e.g. "softphone:".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) get(ctx context.Context, k string) (string, error) {
	v, err := s.rdb.Get(ctx, s.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) set(ctx context.Context, k, v string) error {
	return s.rdb.Set(ctx, s.key(k), v, 0).Err()
}

func (s *RedisStore) SessionToken(ctx context.Context) (string, error) {
	return s.get(ctx, keySessionToken)
}

func (s *RedisStore) SetSessionToken(ctx context.Context, t string) error {
	return s.set(ctx, keySessionToken, t)
}

func (s *RedisStore) VoiceToken(ctx context.Context) (string, error) {
	return s.get(ctx, keyVoiceToken)
}

func (s *RedisStore) SetVoiceToken(ctx context.Context, t string) error {
	return s.set(ctx, keyVoiceToken, t)
}

func (s *RedisStore) User(ctx context.Context) (users.User, error) {
	raw, err := s.get(ctx, keyUser)
	if err != nil {
		return users.User{}, err
	}
	return decodeUser(raw)
}

func (s *RedisStore) SetUser(ctx context.Context, u users.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.set(ctx, keyUser, string(raw))
}

// Clear deletes all keys with a single DEL, which Redis applies atomically.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key(keySessionToken), s.key(keyUser), s.key(keyVoiceToken)).Err()
}
