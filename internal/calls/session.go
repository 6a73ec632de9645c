// Package calls coordinates the single call this device can have at a time,
// reconciling signaling events with what the user does on the native call UI.
package calls

import (
	"errors"
	"time"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRinging    Phase = "ringing"
	PhaseConnecting Phase = "connecting"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Why a call ended.
const (
	CauseRejected        = "rejected"
	CauseRemoteCancelled = "remote_cancelled"
	CauseLocalHangup     = "local_hangup"
	CauseRemoteHangup    = "remote_hangup"
	CauseConnectFailure  = "connect_failure"
	CauseRingTimeout     = "ring_timeout"
	CauseReset           = "reset"
	CauseShutdown        = "shutdown"
	CauseInternal        = "internal_error"
)

var (
	ErrBusy           = errors.New("calls: another call is in progress")
	ErrStaleEvent     = errors.New("calls: event does not match the current call")
	ErrConnectFailure = errors.New("calls: connect failure")
	ErrRingTimeout    = errors.New("calls: not answered in time")
	ErrNotRunning     = errors.New("calls: coordinator is not running")
)

// Session is a read-only view of the current call. CallID is empty iff Phase is idle.
type Session struct {
	CallID      string    `json:"call_id,omitempty"`
	Direction   Direction `json:"direction,omitempty"`
	Phase       Phase     `json:"phase"`
	Remote      string    `json:"remote,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
}

// Transition describes one phase change. Cause, Err and Duration are only set
// on transitions into PhaseEnded; Duration counts from the connected moment.
type Transition struct {
	CallID    string
	Direction Direction
	From      Phase
	To        Phase
	Remote    string
	Cause     string
	Err       error
	Connected bool
	Duration  time.Duration
	At        time.Time
}

// Observer is notified of every transition from the coordinator goroutine.
// Implementations must not block.
type Observer interface {
	OnTransition(Transition)
}

type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// Alerter shows a short human-readable message to the user.
type Alerter interface {
	Alert(callID, message string)
}
