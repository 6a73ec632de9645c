package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is what the relay and the softphone's state store need from Redis.
// Both issue a handful of small commands per call, so the pool stays small.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize    int
	OpTimeout   time.Duration // dial, read and write
	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 2 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	return c
}

// OpenRedis returns a client that has answered PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.OpTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// releaseLease deletes KEYS[1] only while it still holds ARGV[1].
var releaseLease = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

func checkLease(rdb *redis.Client, key, holder string) error {
	switch {
	case rdb == nil:
		return errors.New("redis client is nil")
	case key == "":
		return errors.New("lease key is required")
	case holder == "":
		return errors.New("lease holder is required")
	}
	return nil
}

// AcquireLease takes key for holder unless someone else holds it. Taking a lease
// the holder already owns succeeds and refreshes its ttl. The ttl bounds how long
// a lease leaks if the owning process dies.
func AcquireLease(ctx context.Context, rdb *redis.Client, key, holder string, ttl time.Duration) (bool, error) {
	if err := checkLease(rdb, key, holder); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, errors.New("lease ttl must be > 0")
	}
	ok, err := rdb.SetNX(ctx, key, holder, ttl).Result()
	if err != nil || ok {
		return ok, err
	}
	cur, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two commands; try once more.
		return rdb.SetNX(ctx, key, holder, ttl).Result()
	}
	if err != nil || cur != holder {
		return false, err
	}
	return true, rdb.PExpire(ctx, key, ttl).Err()
}

// ReleaseLease frees key if holder still owns it. Releasing a lease that expired
// or moved to another holder is a no-op.
func ReleaseLease(ctx context.Context, rdb *redis.Client, key, holder string) error {
	if err := checkLease(rdb, key, holder); err != nil {
		return err
	}
	return releaseLease.Run(ctx, rdb, []string{key}, holder).Err()
}
