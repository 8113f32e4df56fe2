package notifier

import (
	"context"
	"sync"

	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"

	"go.uber.org/zap"
)

// MemoryNotifier fans updates out to the watchers of this process.
type MemoryNotifier struct {
	logger   *zap.Logger
	role     config.NotifierRole
	mu       sync.RWMutex
	watchers map[chan *StateUpdate]struct{}
}

var _ Notifier = (*MemoryNotifier)(nil)

// NewMemoryNotifier creates an in-process notifier
func NewMemoryNotifier(logger *zap.Logger, role config.NotifierRole) *MemoryNotifier {
	return &MemoryNotifier{
		logger:   logger.Named("notifier.memory"),
		role:     role,
		watchers: make(map[chan *StateUpdate]struct{}),
	}
}

// Watch implements Notifier.Watch
func (n *MemoryNotifier) Watch(ctx context.Context) (<-chan *StateUpdate, error) {
	if !n.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}

	ch := make(chan *StateUpdate, 10)
	n.mu.Lock()
	n.watchers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watchers, ch)
		close(ch)
	}()

	return ch, nil
}

// NotifyUpdate implements Notifier.NotifyUpdate
func (n *MemoryNotifier) NotifyUpdate(_ context.Context, update *StateUpdate) error {
	if !n.CanSend() {
		return cnst.ErrNotSender
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	for watcher := range n.watchers {
		select {
		case watcher <- update:
		default:
			n.logger.Warn("watcher channel is full, skipping notification",
				zap.String("service", update.Service))
		}
	}
	return nil
}

func (n *MemoryNotifier) CanReceive() bool {
	return n.role == config.RoleReceiver || n.role == config.RoleBoth
}

func (n *MemoryNotifier) CanSend() bool {
	return n.role == config.RoleSender || n.role == config.RoleBoth
}
