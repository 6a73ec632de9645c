// Package signaling wraps the voice transport that registers this device with the
// backend relay and carries call setup for it.
package signaling

import (
	"context"
	"errors"
	"fmt"
)

// EventType names a session-level signaling event.
type EventType string

const (
	EventInviteReceived  EventType = "invite-received"
	EventInviteCancelled EventType = "invite-cancelled"
	EventRegistered      EventType = "registered"
	EventUnregistered    EventType = "unregistered"
	EventError           EventType = "error"
)

// Event is a session-level signaling event. Invite is set for invite-received,
// SID for invite-cancelled, Err for error.
type Event struct {
	Type   EventType
	Invite Invite
	SID    string
	Err    error
}

// Invite is an inbound call offer that has not been answered yet.
type Invite interface {
	SID() string
	From() string
	Accept(ctx context.Context) (Call, error)
	Reject(ctx context.Context) error
}

type CallEventType string

const (
	CallRinging        CallEventType = "ringing"
	CallConnected      CallEventType = "connected"
	CallDisconnected   CallEventType = "disconnected"
	CallConnectFailure CallEventType = "connect-failure"
)

type CallEvent struct {
	Type CallEventType
	// Reason is set by the relay for connect-failure and disconnected.
	Reason string
}

// Call is a live session handle, inbound after Accept or outbound after Connect.
// Events is closed once the call is over.
type Call interface {
	SID() string
	Events() <-chan CallEvent
	Disconnect(ctx context.Context) error
}

// Voice is the device transport underneath Client.
type Voice interface {
	Register(ctx context.Context, accessToken string) error
	Unregister(ctx context.Context, accessToken string) error
	Connect(ctx context.Context, accessToken, destination string) (Call, error)
	Events() <-chan Event
}

var (
	// ErrInvalidToken is returned by a transport when the relay refuses the access token.
	ErrInvalidToken = errors.New("signaling: invalid access token")
	// ErrRejected is returned by a transport when the relay refuses the registration itself.
	ErrRejected = errors.New("signaling: registration rejected")
)

type RegistrationReason string

const (
	ReasonNetwork      RegistrationReason = "network"
	ReasonInvalidToken RegistrationReason = "invalid_token"
	ReasonRejected     RegistrationReason = "rejected"
)

// RegistrationError is the cause carried by an error event after a failed Register.
type RegistrationError struct {
	Reason RegistrationReason
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("signaling: registration failed (%s): %v", e.Reason, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

func classifyRegistration(err error) *RegistrationError {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re
	}
	switch {
	case errors.Is(err, ErrInvalidToken):
		return &RegistrationError{Reason: ReasonInvalidToken, Err: err}
	case errors.Is(err, ErrRejected):
		return &RegistrationError{Reason: ReasonRejected, Err: err}
	default:
		return &RegistrationError{Reason: ReasonNetwork, Err: err}
	}
}

// IsInvalidToken reports whether err is a registration failure caused by the token.
func IsInvalidToken(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re) && re.Reason == ReasonInvalidToken
}

// ConnectError is returned when an outbound call could not be started.
type ConnectError struct {
	Destination string
	Err         error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("signaling: connect to %q: %v", e.Destination, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
