// Package history keeps the call log built from finished calls.
package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voice-softphone/internal/calls"
)

// Repository is append-only; there is no update or delete.
type Repository interface {
	Append(ctx context.Context, r Record) error
	List(ctx context.Context, limit int) ([]Record, error)
}

var ErrInvalidRecord = errors.New("history: invalid record")

type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log.With("component", "history"), clock: time.Now}
}

func (s *Service) Append(ctx context.Context, r Record) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	if r.CallID == "" || r.Direction == "" || r.Status == "" {
		return ErrInvalidRecord
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, r)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.repo.List(ctx, limit)
}

// OnTransition records every call that reaches the ended phase.
// Recording is best-effort: failures are logged.
func (s *Service) OnTransition(t calls.Transition) {
	if t.To != calls.PhaseEnded {
		return
	}
	r := Record{
		CallID:          t.CallID,
		Direction:       DirectionIncoming,
		Status:          statusFor(t),
		Remote:          t.Remote,
		Cause:           t.Cause,
		DurationSeconds: int(t.Duration.Round(time.Second) / time.Second),
		EndedAt:         t.At,
	}
	if t.Direction == calls.DirectionOutbound {
		r.Direction = DirectionOutgoing
	}
	if err := s.Append(context.Background(), r); err != nil {
		s.log.Warn("history append failed", "call_id", t.CallID, "err", err)
	}
}

func statusFor(t calls.Transition) Status {
	if t.Connected {
		return StatusCompleted
	}
	if t.Direction == calls.DirectionInbound {
		switch t.Cause {
		case calls.CauseRejected:
			return StatusRejected
		case calls.CauseRemoteCancelled, calls.CauseRingTimeout:
			return StatusMissed
		}
	}
	return StatusFailed
}
