package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/amoylab/mdprovider/pkg/metrics"
	"github.com/amoylab/mdprovider/pkg/omm"

	"go.uber.org/zap"
)

// Event is anything posted to the dispatcher from outside the dispatch goroutine.
type Event interface {
	eventName() string
}

// ConnectionEvent announces a connection the transport has accepted.
type ConnectionEvent struct {
	Handle     omm.Handle
	RemoteAddr string
}

// RequestEvent carries one decoded inbound message.
type RequestEvent struct {
	Session omm.Handle
	Token   omm.Token
	Msg     *omm.Msg
}

// InactiveEvent reports a lost connection.
type InactiveEvent struct {
	Session omm.Handle
}

// TimerEvent is posted when a timer scheduled through PubContext expires.
type TimerEvent struct {
	timer *timerEntry
}

// Handle returns the transport handle of the timer.
func (e TimerEvent) Handle() omm.Handle {
	if e.timer == nil {
		return ""
	}
	return e.timer.handle
}

// FuncEvent runs Fn on the dispatch goroutine. It is how other goroutines read
// or change provider state.
type FuncEvent struct {
	Fn func(ctx context.Context, pub *PubContext)
}

func (ConnectionEvent) eventName() string { return "connection" }
func (RequestEvent) eventName() string { return "request" }
func (InactiveEvent) eventName() string { return "inactive" }
func (TimerEvent) eventName() string { return "timer" }
func (FuncEvent) eventName() string { return "func" }

// EventHandler consumes dispatched events. It is only ever called from the
// dispatch goroutine.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// Dispatcher is a single consumer event loop. Producers may call Post
// concurrently; events are handled one at a time in posting order.
type Dispatcher struct {
	queue   chan Event
	handler EventHandler
	closed  atomic.Bool
	running atomic.Bool
	done    chan struct{}
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. If queueSize <= 0, a default is used.
func NewDispatcher(logger *zap.Logger, queueSize int, handler EventHandler, m *metrics.Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Dispatcher{
		queue:   make(chan Event, queueSize),
		handler: handler,
		done:    make(chan struct{}),
		metrics: m,
		logger:  logger.Named("dispatcher"),
	}
}

// Post enqueues ev without blocking.
func (d *Dispatcher) Post(ev Event) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// PostWait enqueues ev, blocking until there is room or ctx is done.
func (d *Dispatcher) PostWait(ctx context.Context, ev Event) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- ev:
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles events until ctx is done. Events still queued at that point are
// dropped. Run may be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already running")
	}
	defer close(d.done)
	defer d.closed.Store(true)

	d.logger.Info("dispatcher started", zap.Int("queue_size", cap(d.queue)))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", zap.Int("dropped", len(d.queue)))
			return nil
		case ev := <-d.queue:
			d.safeHandle(ctx, ev)
		}
	}
}

// Done is closed after Run returns.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Len is the number of queued events.
func (d *Dispatcher) Len() int { return len(d.queue) }

func (d *Dispatcher) safeHandle(ctx context.Context, ev Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling event",
				zap.String("event", ev.eventName()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
		d.metrics.ObserveDispatch(ev.eventName(), start)
	}()
	d.handler.HandleEvent(ctx, ev)
}
