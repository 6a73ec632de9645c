package history

import "time"

// Record is one finished call as shown in the history screen.
//
// Records are append-only and live in memory for the lifetime of the process.
type Record struct {
	ID        string    `json:"id"`
	CallID    string    `json:"call_id"`
	Direction Direction `json:"direction"`
	Status    Status    `json:"status"`
	Remote    string    `json:"remote"`
	Cause     string    `json:"cause,omitempty"`

	// DurationSeconds counts from the moment the call connected.
	DurationSeconds int `json:"duration"`

	EndedAt time.Time `json:"ended_at"`
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)
