package notifier

import (
	"context"
	"fmt"

	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"

	"go.uber.org/zap"
)

// NewNotifier creates a new notifier based on the configuration
func NewNotifier(ctx context.Context, logger *zap.Logger, cfg *config.NotifierConfig) (Notifier, error) {
	role := config.NotifierRole(cfg.Role)
	if role == "" {
		role = config.RoleBoth
	}

	switch cfg.Type {
	case cnst.BackendMemory, "":
		return NewMemoryNotifier(logger, role), nil
	case cnst.BackendRedis:
		return NewRedisNotifier(ctx, logger, cfg.Redis, role)
	default:
		return nil, fmt.Errorf("%w: notifier %q", cnst.ErrUnsupportedBackend, cfg.Type)
	}
}
