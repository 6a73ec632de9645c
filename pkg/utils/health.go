package utils

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Probe is one named dependency check used for readiness.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

func PostgresProbe(db *sql.DB) Probe {
	return Probe{Name: "postgres", Check: func(ctx context.Context) error {
		return PingPostgres(ctx, db, time.Second)
	}}
}

func RedisProbe(rdb *redis.Client) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis client is nil")
		}
		return rdb.Ping(ctx).Err()
	}}
}

// RunProbes runs every probe concurrently, each bounded by timeout, and returns
// the failures keyed by probe name. An empty result means ready.
func RunProbes(ctx context.Context, timeout time.Duration, probes ...Probe) map[string]error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = make(map[string]error)
	)
	for _, p := range probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := p.Check(pctx); err != nil {
				mu.Lock()
				failures[p.Name] = err
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return failures
}
