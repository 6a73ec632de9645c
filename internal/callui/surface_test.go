package callui

import (
	"context"
	"errors"
	"testing"
)

func TestSurface_DisplayAndEnd(t *testing.T) {
	s := NewSurface(nil, nil)
	notices, cancel := s.Subscribe(4)
	defer cancel()

	if err := s.Display(context.Background(), "c1", "+15550001111"); err != nil {
		t.Fatalf("display: %v", err)
	}
	n := <-notices
	if n.Type != NoticeDisplay || n.CallID != "c1" || n.Label != "+15550001111" {
		t.Fatalf("unexpected notice: %+v", n)
	}

	if err := s.End(context.Background(), "c1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if n := <-notices; n.Type != NoticeEnd {
		t.Fatalf("expected end notice, got %+v", n)
	}

	// Second end is a no-op.
	if err := s.End(context.Background(), "c1"); err != nil {
		t.Fatalf("end again: %v", err)
	}
	select {
	case n := <-notices:
		t.Fatalf("unexpected notice after idempotent end: %+v", n)
	default:
	}
}

func TestSurface_SetupFailureRunsOnce(t *testing.T) {
	calls := 0
	s := NewSurface(func() error {
		calls++
		return errors.New("no phone account")
	}, nil)

	for i := 0; i < 2; i++ {
		err := s.Display(context.Background(), "c1", "x")
		if !errors.Is(err, ErrSetupFailed) {
			t.Fatalf("expected ErrSetupFailed, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("setup ran %d times", calls)
	}
}

func TestSurface_IntentsStillFlowAfterSetupFailure(t *testing.T) {
	s := NewSurface(func() error { return errors.New("nope") }, nil)
	_ = s.Display(context.Background(), "c1", "x")

	if err := s.Answer(context.Background(), "c1"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	in := <-s.Intents()
	if in.Type != IntentAnswer || in.CallID != "c1" {
		t.Fatalf("unexpected intent: %+v", in)
	}
	if err := s.EndCall(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty call id")
	}
}

func TestSurface_CancelledSubscriberStopsReceiving(t *testing.T) {
	s := NewSurface(nil, nil)
	ch, cancel := s.Subscribe(1)
	cancel()
	cancel()
	s.Alert("c1", "call failed")
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
}
