package observe

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-softphone/internal/calls"
)

func TestCallMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCallMetrics(reg)

	m.OnTransition(calls.Transition{From: calls.PhaseIdle, To: calls.PhaseRinging})
	m.OnTransition(calls.Transition{From: calls.PhaseRinging, To: calls.PhaseConnecting})
	m.OnTransition(calls.Transition{From: calls.PhaseConnecting, To: calls.PhaseActive})
	if got := testutil.ToFloat64(m.active); got != 1 {
		t.Fatalf("active = %v, want 1", got)
	}

	m.OnTransition(calls.Transition{
		Direction: calls.DirectionInbound, From: calls.PhaseActive, To: calls.PhaseEnded,
		Cause: calls.CauseRemoteHangup, Connected: true, Duration: 42 * time.Second,
	})
	if got := testutil.ToFloat64(m.active); got != 0 {
		t.Fatalf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.ended.WithLabelValues("inbound", calls.CauseRemoteHangup)); got != 1 {
		t.Fatalf("ended = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("idle", "ringing")); got != 1 {
		t.Fatalf("transitions idle->ringing = %v", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestNewCallMetricsRegistersOnSuppliedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCallMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	NewCallMetrics(reg)
}
