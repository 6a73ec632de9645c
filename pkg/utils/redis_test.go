package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLease_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireLease(ctx, nil, "k", "h", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseLease(ctx, nil, "k", "h"); err == nil {
		t.Fatalf("expected error for nil client")
	}

	// Argument checks run before any command is sent.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	if _, err := AcquireLease(ctx, rdb, "", "h", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := AcquireLease(ctx, rdb, "k", "", time.Second); err == nil {
		t.Fatalf("expected error for empty holder")
	}
	if _, err := AcquireLease(ctx, rdb, "k", "h", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestRedisDefaults(t *testing.T) {
	c := RedisConfig{Addr: "x"}.withDefaults()
	if c.PoolSize != 4 || c.OpTimeout != 2*time.Second || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
