package utils

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestWithTx_NilDB(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, nil, func(ctx context.Context, _ *sql.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, errNilDB) {
		t.Fatalf("expected errNilDB, got %v", err)
	}
	if called {
		t.Fatalf("fn must not run without a db")
	}
}

func TestPingPostgres_NilDB(t *testing.T) {
	if err := PingPostgres(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestPoolDefaults(t *testing.T) {
	p := PostgresPoolConfig{}.withDefaults()
	if p.MaxOpenConns != 10 || p.MaxIdleConns != 5 {
		t.Fatalf("unexpected pool defaults: %+v", p)
	}
	if p.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %v", p.PingTimeout)
	}

	p = PostgresPoolConfig{MaxOpenConns: 2, MaxIdleConns: 8}.withDefaults()
	if p.MaxIdleConns != 2 {
		t.Fatalf("idle conns must not exceed open conns: %+v", p)
	}
}

func TestRunProbes(t *testing.T) {
	down := errors.New("down")
	failures := RunProbes(context.Background(), 100*time.Millisecond,
		Probe{Name: "ok", Check: func(context.Context) error { return nil }},
		Probe{Name: "bad", Check: func(context.Context) error { return down }},
		Probe{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		PostgresProbe(nil),
		RedisProbe(nil),
	)
	if len(failures) != 4 {
		t.Fatalf("expected 4 failures, got %v", failures)
	}
	if !errors.Is(failures["bad"], down) {
		t.Fatalf("unexpected bad failure: %v", failures["bad"])
	}
	if !errors.Is(failures["slow"], context.DeadlineExceeded) {
		t.Fatalf("slow probe should time out: %v", failures["slow"])
	}
	if _, ok := failures["ok"]; ok {
		t.Fatalf("ok probe reported failure")
	}
}
