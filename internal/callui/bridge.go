// Package callui is the boundary to the OS-level call surface: it shows and dismisses
// incoming-call screens and reports what the user did with them.
package callui

import (
	"context"
	"errors"
	"time"
)

// ErrSetupFailed is returned by Display when the native surface could not be initialized.
var ErrSetupFailed = errors.New("callui: bridge setup failed")

type IntentType string

const (
	IntentAnswer IntentType = "answer"
	IntentEnd    IntentType = "end"
)

// Intent is a user action on the native surface, keyed by the call identifier the
// surface was given in Display.
type Intent struct {
	Type   IntentType `json:"type"`
	CallID string     `json:"call_id"`
}

// Bridge is what the call coordinator needs from the native surface.
type Bridge interface {
	Display(ctx context.Context, callID, label string) error
	// End dismisses the surface for callID. Ending an unknown or already ended call is not an error.
	End(ctx context.Context, callID string) error
	Intents() <-chan Intent
}

type NoticeType string

const (
	NoticeDisplay NoticeType = "display"
	NoticeEnd     NoticeType = "end"
	NoticeAlert   NoticeType = "alert"
)

// Notice is what the surface pushes to the native shell.
type Notice struct {
	Type    NoticeType `json:"type"`
	CallID  string     `json:"call_id,omitempty"`
	Label   string     `json:"label,omitempty"`
	Message string     `json:"message,omitempty"`
	At      time.Time  `json:"at"`
}
