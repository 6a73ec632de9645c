// Package telephony is the Twilio boundary of the backend: it answers the voice
// webhook raised when a softphone places a call and tells Twilio where to connect it.
package telephony

import (
	"context"
	"time"
)

// VoiceRequest is a voice webhook for a call placed by a registered device.
// From is the device identity ("client:<user id>"), To is what the user dialed.
type VoiceRequest struct {
	CallSid    string `json:"call_sid"`
	AccountSid string `json:"account_sid"`
	From       string `json:"from"`
	To         string `json:"to"`
	Direction  string `json:"direction"`
	CallStatus string `json:"call_status"`
	APIVersion string `json:"api_version"`

	OccurredAt time.Time `json:"occurred_at"`
}

type VoiceAction string

const (
	VoiceActionDialNumber VoiceAction = "dial_number"
	VoiceActionDialClient VoiceAction = "dial_client"
	VoiceActionReject     VoiceAction = "reject"
	VoiceActionHangup     VoiceAction = "hangup"
)

// VoiceResult says what Twilio should do with the call.
type VoiceResult struct {
	Action VoiceAction `json:"action"`

	// Target is the E.164 number or the client identity to dial.
	Target string `json:"target,omitempty"`
	// CallerID is presented to PSTN destinations.
	CallerID string `json:"caller_id,omitempty"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Router decides where an outbound softphone call goes.
type Router interface {
	RouteVoiceCall(ctx context.Context, req VoiceRequest) (VoiceResult, error)
}
