package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type handlerFunc func(ctx context.Context, ev Event)

func (f handlerFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }

func TestDispatcher_OrderAndPanicRecovery(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	d := NewDispatcher(zap.NewNop(), 16, handlerFunc(func(_ context.Context, ev Event) {
		fe := ev.(FuncEvent)
		fe.Fn(context.Background(), nil)
	}), nil)

	record := func(s string) FuncEvent {
		return FuncEvent{Fn: func(context.Context, *PubContext) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}}
	}
	require.NoError(t, d.Post(record("a")))
	require.NoError(t, d.Post(FuncEvent{Fn: func(context.Context, *PubContext) { panic("boom") }}))
	require.NoError(t, d.Post(record("b")))
	require.NoError(t, d.Post(FuncEvent{Fn: func(context.Context, *PubContext) { close(done) }}))
	assert.Equal(t, 4, d.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not handled")
	}
	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, seen)
	mu.Unlock()

	assert.Error(t, d.Run(ctx))
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), 1, handlerFunc(func(context.Context, Event) {}), nil)
	require.NoError(t, d.Post(FuncEvent{}))
	assert.ErrorIs(t, d.Post(FuncEvent{}), ErrQueueFull)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.PostWait(ctx, FuncEvent{}), context.DeadlineExceeded)
}

func TestDispatcher_ClosedAfterRun(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), 4, handlerFunc(func(context.Context, Event) {}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	<-d.Done()
	assert.ErrorIs(t, d.Post(FuncEvent{}), ErrDispatcherClosed)
	assert.ErrorIs(t, d.PostWait(context.Background(), FuncEvent{}), ErrDispatcherClosed)
}
