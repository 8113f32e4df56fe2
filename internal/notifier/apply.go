package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amoylab/mdprovider/internal/core"

	"go.uber.org/zap"
)

// ErrUnknownService is returned by Apply for a service the directory does not publish.
var ErrUnknownService = errors.New("unknown service")

// Validate checks that update names a service and a known state.
func (u *StateUpdate) Validate() error {
	if u.Service == "" {
		return errors.New("state update without service")
	}
	if !strings.EqualFold(u.State, StateUp) && !strings.EqualFold(u.State, StateDown) {
		return fmt.Errorf("unknown service state %q", u.State)
	}
	return nil
}

// Apply changes the named service in the directory. It must run on the
// dispatch goroutine. Directory streams see the change through the normal
// service change path.
func Apply(dir *core.ServiceDirectory, u *StateUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	svc, ok := dir.Get(u.Service)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, u.Service)
	}
	if strings.EqualFold(u.State, StateUp) {
		svc.SetUp()
	} else {
		svc.SetDown(u.Text)
	}
	return nil
}

// Forward applies every update from n to pub until ctx is done or the watch
// channel closes.
func Forward(ctx context.Context, logger *zap.Logger, n Notifier, pub *core.PubContext) error {
	ch, err := n.Watch(ctx)
	if err != nil {
		return err
	}
	logger = logger.Named("notifier")
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-ch:
			if !ok {
				return nil
			}
			ev := core.FuncEvent{Fn: func(_ context.Context, p *core.PubContext) {
				if err := Apply(p.Directory(), u); err != nil {
					logger.Warn("failed to apply state update", zap.String("service", u.Service), zap.Error(err))
					return
				}
				logger.Info("service state changed", zap.String("service", u.Service), zap.String("state", u.State))
			}}
			if err := pub.PostWait(ctx, ev); err != nil {
				logger.Warn("failed to post state update", zap.Error(err))
			}
		}
	}
}
