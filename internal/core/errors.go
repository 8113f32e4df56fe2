package core

import "errors"

var (
	// ErrTargetGone is returned by a Transport when the session or stream it was
	// asked to write to no longer exists. The token is then treated as closed.
	ErrTargetGone = errors.New("submit target gone")
	// ErrSessionTerminated is returned when submitting on a session after it went inactive
	ErrSessionTerminated = errors.New("client session terminated")
	// ErrDispatcherClosed is returned when posting to a stopped dispatcher
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrQueueFull is returned when the dispatcher queue has no room left
	ErrQueueFull = errors.New("dispatcher queue full")
)
