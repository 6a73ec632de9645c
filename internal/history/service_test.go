package history

import (
	"context"
	"testing"
	"time"

	"voice-softphone/internal/calls"
)

func TestService_AppendRequiresCallDirectionAndStatus(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	if err := svc.Append(context.Background(), Record{Direction: DirectionIncoming, Status: StatusMissed}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Record{CallID: "c1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_RecordsEndedTransitions(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	svc.OnTransition(calls.Transition{CallID: "c0", From: calls.PhaseIdle, To: calls.PhaseRinging})
	svc.OnTransition(calls.Transition{
		CallID: "c1", Direction: calls.DirectionInbound, From: calls.PhaseActive, To: calls.PhaseEnded,
		Remote: "+15550001111", Cause: calls.CauseRemoteHangup, Connected: true, Duration: 61 * time.Second, At: at,
	})
	svc.OnTransition(calls.Transition{
		CallID: "c2", Direction: calls.DirectionOutbound, From: calls.PhaseConnecting, To: calls.PhaseEnded,
		Remote: "+15550002222", Cause: calls.CauseConnectFailure, At: at,
	})

	recs, err := svc.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].CallID != "c2" || recs[0].Direction != DirectionOutgoing || recs[0].Status != StatusFailed {
		t.Fatalf("unexpected newest record: %+v", recs[0])
	}
	if recs[1].Status != StatusCompleted || recs[1].DurationSeconds != 61 || !recs[1].EndedAt.Equal(at) {
		t.Fatalf("unexpected completed record: %+v", recs[1])
	}
	if recs[1].ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		tr   calls.Transition
		want Status
	}{
		{calls.Transition{Direction: calls.DirectionInbound, Cause: calls.CauseRejected}, StatusRejected},
		{calls.Transition{Direction: calls.DirectionInbound, Cause: calls.CauseRingTimeout}, StatusMissed},
		{calls.Transition{Direction: calls.DirectionInbound, Cause: calls.CauseRemoteCancelled}, StatusMissed},
		{calls.Transition{Direction: calls.DirectionOutbound, Cause: calls.CauseLocalHangup}, StatusFailed},
		{calls.Transition{Direction: calls.DirectionOutbound, Cause: calls.CauseLocalHangup, Connected: true}, StatusCompleted},
	}
	for _, tc := range cases {
		if got := statusFor(tc.tr); got != tc.want {
			t.Fatalf("statusFor(%+v) = %s, want %s", tc.tr, got, tc.want)
		}
	}
}

func TestMemoryRepo_ListLimit(t *testing.T) {
	repo := NewMemoryRepo()
	for _, id := range []string{"a", "b", "c"} {
		_ = repo.Append(context.Background(), Record{CallID: id})
	}
	recs, _ := repo.List(context.Background(), 2)
	if len(recs) != 2 || recs[0].CallID != "c" || recs[1].CallID != "b" {
		t.Fatalf("unexpected list: %+v", recs)
	}
}
