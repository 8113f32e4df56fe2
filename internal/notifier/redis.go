package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamMaxLen bounds the stream; receivers only read what arrives after they start.
const streamMaxLen = 100

// RedisNotifier implements Notifier using Redis streams
type RedisNotifier struct {
	logger     *zap.Logger
	client     redis.UniversalClient
	streamName string
	role       config.NotifierRole
	block      time.Duration
}

var _ Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier creates a new Redis-based notifier
func NewRedisNotifier(ctx context.Context, logger *zap.Logger, cfg config.NotifierRedisConfig, role config.NotifierRole) (*RedisNotifier, error) {
	client, err := utils.NewRedisClient(ctx, utils.RedisOptions{
		ClusterType: cfg.ClusterType,
		Addr:        cfg.Addr,
		MasterName:  cfg.MasterName,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})
	if err != nil {
		return nil, err
	}

	return &RedisNotifier{
		logger:     logger.Named("notifier.redis"),
		client:     client,
		streamName: cfg.Topic,
		role:       role,
		block:      time.Second,
	}, nil
}

// Watch implements Notifier.Watch
func (r *RedisNotifier) Watch(ctx context.Context) (<-chan *StateUpdate, error) {
	if !r.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}

	ch := make(chan *StateUpdate, 10)

	go func() {
		defer close(ch)

		// XREAD rather than XREADGROUP so every instance sees every update
		lastID := "$"

		for {
			if ctx.Err() != nil {
				return
			}
			streams, err := r.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{r.streamName, lastID},
				Count:   10,
				Block:   r.block,
			}).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					r.logger.Error("failed to read from stream", zap.Error(err))
					select {
					case <-time.After(r.block):
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					lastID = message.ID

					raw, ok := message.Values["update"].(string)
					if !ok {
						continue
					}
					var update StateUpdate
					if err := json.Unmarshal([]byte(raw), &update); err != nil {
						r.logger.Error("failed to unmarshal state update", zap.String("messageID", message.ID), zap.Error(err))
						continue
					}
					select {
					case ch <- &update:
						r.logger.Debug("state update received",
							zap.String("messageID", message.ID),
							zap.String("service", update.Service))
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// NotifyUpdate implements Notifier.NotifyUpdate
func (r *RedisNotifier) NotifyUpdate(ctx context.Context, update *StateUpdate) error {
	if !r.CanSend() {
		return cnst.ErrNotSender
	}

	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal state update: %w", err)
	}

	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamName,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"update":    string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add message to stream: %w", err)
	}
	return nil
}

func (r *RedisNotifier) CanReceive() bool {
	return r.role == config.RoleReceiver || r.role == config.RoleBoth
}

func (r *RedisNotifier) CanSend() bool {
	return r.role == config.RoleSender || r.role == config.RoleBoth
}

// Close closes the Redis client
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
