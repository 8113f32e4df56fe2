package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryNotifier_CanSendReceiveByRole(t *testing.T) {
	recv := NewMemoryNotifier(zap.NewNop(), config.RoleReceiver)
	assert.True(t, recv.CanReceive())
	assert.False(t, recv.CanSend())
	assert.ErrorIs(t, recv.NotifyUpdate(context.Background(), &StateUpdate{}), cnst.ErrNotSender)

	send := NewMemoryNotifier(zap.NewNop(), config.RoleSender)
	assert.False(t, send.CanReceive())
	assert.True(t, send.CanSend())
	_, err := send.Watch(context.Background())
	assert.ErrorIs(t, err, cnst.ErrNotReceiver)
}

func TestMemoryNotifier_FanOut(t *testing.T) {
	n := NewMemoryNotifier(zap.NewNop(), config.RoleBoth)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := n.Watch(ctx)
	require.NoError(t, err)
	ch2, err := n.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, n.NotifyUpdate(ctx, &StateUpdate{Service: "DIRECT_FEED", State: StateDown, Text: "maintenance"}))

	for _, ch := range []<-chan *StateUpdate{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "DIRECT_FEED", got.Service)
			assert.Equal(t, StateDown, got.State)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for update")
		}
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch1
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryNotifier_FullWatcherDoesNotBlock(t *testing.T) {
	n := NewMemoryNotifier(zap.NewNop(), config.RoleBoth)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := n.Watch(ctx)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, n.NotifyUpdate(ctx, &StateUpdate{Service: "S", State: StateUp}))
	}
}

func TestNewNotifier_Factory(t *testing.T) {
	n, err := NewNotifier(context.Background(), zap.NewNop(), &config.NotifierConfig{Type: cnst.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryNotifier{}, n)
	assert.True(t, n.CanSend())
	assert.True(t, n.CanReceive())

	_, err = NewNotifier(context.Background(), zap.NewNop(), &config.NotifierConfig{Type: "signal"})
	assert.ErrorIs(t, err, cnst.ErrUnsupportedBackend)
}
