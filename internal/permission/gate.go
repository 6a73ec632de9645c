// Package permission acquires the OS permissions a call needs before any
// signaling session is created.
package permission

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDenied reports that a mandatory permission was refused.
var ErrDenied = errors.New("permission: denied")

type Kind string

const (
	Microphone Kind = "microphone"
	PhoneState Kind = "phone_state"
)

type Status string

const (
	StatusGranted     Status = "granted"
	StatusDenied      Status = "denied"
	StatusBlocked     Status = "blocked"
	StatusUnavailable Status = "unavailable"
)

// Requester prompts the host platform for one permission.
type Requester interface {
	Request(ctx context.Context, kind Kind) (Status, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, kind Kind) (Status, error)

func (f RequesterFunc) Request(ctx context.Context, kind Kind) (Status, error) { return f(ctx, kind) }

type Config struct {
	// PhoneStateApplicable is true on platforms with a separate telephony-state permission.
	PhoneStateApplicable bool
	// RequirePhoneStatePermission turns the phone-state request from best-effort into mandatory.
	RequirePhoneStatePermission bool
}

// Gate sequences the permission prompts for a call attempt.
type Gate struct {
	req Requester
	cfg Config
	log *slog.Logger
}

func NewGate(req Requester, cfg Config, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{req: req, cfg: cfg, log: log.With("component", "permission")}
}

// RequestCallPermissions prompts for the microphone and then, where applicable, for
// phone state. It returns false as soon as a mandatory permission is refused and
// never prompts for the same permission twice in one call.
func (g *Gate) RequestCallPermissions(ctx context.Context) bool {
	if !g.request(ctx, Microphone) {
		g.log.Warn("microphone permission denied")
		return false
	}
	if !g.cfg.PhoneStateApplicable {
		return true
	}
	if !g.request(ctx, PhoneState) {
		if g.cfg.RequirePhoneStatePermission {
			g.log.Warn("phone state permission denied")
			return false
		}
		g.log.Info("phone state permission denied, continuing without it")
	}
	return true
}

func (g *Gate) request(ctx context.Context, kind Kind) bool {
	if g.req == nil {
		return false
	}
	st, err := g.req.Request(ctx, kind)
	if err != nil {
		g.log.Error("permission request failed", "kind", kind, "err", err)
		return false
	}
	g.log.Debug("permission result", "kind", kind, "status", st)
	return st == StatusGranted
}

// StaticRequester answers from a fixed set of granted permissions, as configured
// by the host shell that owns the actual OS prompts.
type StaticRequester struct {
	granted map[Kind]struct{}
}

func NewStaticRequester(granted ...string) *StaticRequester {
	s := &StaticRequester{granted: make(map[Kind]struct{}, len(granted))}
	for _, g := range granted {
		s.granted[Kind(g)] = struct{}{}
	}
	return s
}

func (s *StaticRequester) Request(_ context.Context, kind Kind) (Status, error) {
	if _, ok := s.granted[kind]; ok {
		return StatusGranted, nil
	}
	return StatusDenied, nil
}
