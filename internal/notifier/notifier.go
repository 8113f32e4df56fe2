// Package notifier carries service state changes between provider instances
// and operators.
package notifier

import (
	"context"
	"time"
)

// Service states carried by a StateUpdate
const (
	StateUp   = "Up"
	StateDown = "Down"
)

// StateUpdate asks every receiving provider to move a service up or down.
type StateUpdate struct {
	Service string    `json:"service"`
	State   string    `json:"state"`
	Text    string    `json:"text,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier defines the interface for service state notification
type Notifier interface {
	// Watch returns a channel that receives updates until ctx is done
	Watch(ctx context.Context) (<-chan *StateUpdate, error)

	// NotifyUpdate publishes an update
	NotifyUpdate(ctx context.Context, update *StateUpdate) error

	// CanReceive returns true if the notifier can receive updates
	CanReceive() bool

	// CanSend returns true if the notifier can send updates
	CanSend() bool
}
