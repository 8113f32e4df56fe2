package core

import (
	"context"
	"time"

	"github.com/amoylab/mdprovider/pkg/omm"
)

// Transport is the connection layer the provider publishes through. It owns
// sockets, handles and timers; the core only sees this boundary.
type Transport interface {
	// RegisterClient activates a freshly accepted connection. The transport may
	// hand back a different handle than the one requested.
	RegisterClient(ctx context.Context, conn omm.Handle) (omm.Handle, error)
	UnregisterClient(session omm.Handle)
	// Submit writes one response on the stream identified by token. It returns
	// ErrTargetGone when the session or stream is no longer live.
	Submit(ctx context.Context, session omm.Handle, token omm.Token, msg *omm.Msg) error
	// ScheduleTimer calls fn after delay, and every delay when repeating, until
	// UnregisterTimer. fn runs on a transport goroutine.
	ScheduleTimer(delay time.Duration, repeating bool, fn func()) omm.Handle
	UnregisterTimer(timer omm.Handle)
}
