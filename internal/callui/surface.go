package callui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Surface is a Bridge backed by whatever native shell subscribes to its notices.
// The shell reports user actions back through Answer and EndCall.
type Surface struct {
	log   *slog.Logger
	setup func() error
	clock func() time.Time

	setupOnce sync.Once
	setupErr  error

	mu        sync.Mutex
	displayed map[string]bool
	subs      map[int]chan Notice
	nextSub   int

	intents chan Intent
}

// NewSurface builds a Surface. setup runs once, on first Display; nil means nothing to set up.
func NewSurface(setup func() error, log *slog.Logger) *Surface {
	if log == nil {
		log = slog.Default()
	}
	return &Surface{
		log:       log.With("component", "callui"),
		setup:     setup,
		clock:     time.Now,
		displayed: make(map[string]bool),
		subs:      make(map[int]chan Notice),
		intents:   make(chan Intent, 16),
	}
}

func (s *Surface) ensureSetup() error {
	s.setupOnce.Do(func() {
		if s.setup != nil {
			s.setupErr = s.setup()
		}
	})
	return s.setupErr
}

func (s *Surface) Display(_ context.Context, callID, label string) error {
	if err := s.ensureSetup(); err != nil {
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	s.mu.Lock()
	s.displayed[callID] = true
	s.mu.Unlock()
	s.publish(Notice{Type: NoticeDisplay, CallID: callID, Label: label})
	return nil
}

func (s *Surface) End(_ context.Context, callID string) error {
	s.mu.Lock()
	shown := s.displayed[callID]
	delete(s.displayed, callID)
	s.mu.Unlock()
	if !shown {
		return nil
	}
	s.publish(Notice{Type: NoticeEnd, CallID: callID})
	return nil
}

// Alert shows a human-readable message on the shell, e.g. an outbound call failure.
func (s *Surface) Alert(callID, message string) {
	s.publish(Notice{Type: NoticeAlert, CallID: callID, Message: message})
}

func (s *Surface) Intents() <-chan Intent { return s.intents }

// Answer reports that the user answered callID. It also serves as the in-app
// fallback when the native screen could not be shown.
func (s *Surface) Answer(ctx context.Context, callID string) error {
	return s.push(ctx, Intent{Type: IntentAnswer, CallID: callID})
}

// EndCall reports that the user ended or declined callID.
func (s *Surface) EndCall(ctx context.Context, callID string) error {
	return s.push(ctx, Intent{Type: IntentEnd, CallID: callID})
}

func (s *Surface) push(ctx context.Context, in Intent) error {
	if in.CallID == "" {
		return fmt.Errorf("callui: empty call id")
	}
	select {
	case s.intents <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a stream of notices and a func that cancels the subscription.
// Slow subscribers miss notices rather than stall the coordinator.
func (s *Surface) Subscribe(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Notice, buffer)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Surface) publish(n Notice) {
	n.At = s.clock().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- n:
		default:
			s.log.Warn("dropping notice for slow subscriber", "subscriber", id, "type", n.Type, "call_id", n.CallID)
		}
	}
}
