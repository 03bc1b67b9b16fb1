// events/events.go
package events

import (
	"context"
	"time"
)

// Channel is the Redis channel lifecycle events are published on.
const Channel = "task-events"

const (
	TypeTaskCreated    = "task.created"
	TypeProofSubmitted = "proof.submitted"
	TypeTaskVerified   = "task.verified"
)

type Event struct {
	Type        string    `json:"type"`
	TaskID      int64     `json:"task_id"`
	UserAddress string    `json:"user_address"`
	Verified    *bool     `json:"verified,omitempty"`
	ProofType   string    `json:"proof_type,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher fans lifecycle events out to other services.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
