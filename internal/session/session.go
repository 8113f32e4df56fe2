package session

import (
	"context"
	"errors"
	"time"
)

// Meta is what the provider publishes about one accepted client session.
type Meta struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LoggedIn   bool      `json:"logged_in"`
	User       string    `json:"user,omitempty"`
}

// Store mirrors live client sessions so operators (and other instances) can
// see them. It is never read back by the dispatch path.
type Store interface {
	// Register creates or replaces the metadata for meta.ID.
	Register(ctx context.Context, meta *Meta) error

	// Get retrieves session metadata by ID.
	Get(ctx context.Context, id string) (*Meta, error)

	// Unregister removes a session by ID.
	Unregister(ctx context.Context, id string) error

	// List returns every known session.
	List(ctx context.Context) ([]*Meta, error)
}

// ErrSessionNotFound is returned when a session is not found
var ErrSessionNotFound = errors.New("session not found")
