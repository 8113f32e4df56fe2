package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Update is published on the session topic for every change.
type Update struct {
	Action string `json:"action"` // "register" or "unregister"
	Meta   *Meta  `json:"meta"`
}

// RedisStore implements Store using Redis
type RedisStore struct {
	logger *zap.Logger
	client redis.UniversalClient
	prefix string
	topic  string
	ttl    time.Duration // TTL for session data, 0 keeps it until unregistered
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-based session store
func NewRedisStore(ctx context.Context, logger *zap.Logger, cfg config.SessionRedisConfig) (*RedisStore, error) {
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
	return newRedisStore(logger, client, cfg), nil
}

func newRedisStore(logger *zap.Logger, client redis.UniversalClient, cfg config.SessionRedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore{
		logger: logger.Named("session.store.redis"),
		client: client,
		prefix: prefix,
		topic:  cfg.Topic,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) idsKey() string { return s.prefix + "ids" }

// publishUpdate publishes a session update to the topic
func (s *RedisStore) publishUpdate(ctx context.Context, action string, meta *Meta) error {
	if s.topic == "" {
		return nil
	}
	data, err := json.Marshal(&Update{Action: action, Meta: meta})
	if err != nil {
		return fmt.Errorf("failed to marshal session update: %w", err)
	}
	return s.client.Publish(ctx, s.topic, data).Err()
}

// Register implements Store.Register
func (s *RedisStore) Register(ctx context.Context, meta *Meta) error {
	m := *meta
	m.UpdatedAt = time.Now()
	data, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+m.ID, data, s.ttl)
	pipe.SAdd(ctx, s.idsKey(), m.ID)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.idsKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session metadata in Redis: %w", err)
	}

	if err := s.publishUpdate(ctx, "register", &m); err != nil {
		s.logger.Warn("failed to publish session update", zap.String("id", m.ID), zap.Error(err))
	}
	return nil
}

// Get implements Store.Get
func (s *RedisStore) Get(ctx context.Context, id string) (*Meta, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session metadata from Redis: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session metadata: %w", err)
	}
	return &meta, nil
}

// Unregister implements Store.Unregister
func (s *RedisStore) Unregister(ctx context.Context, id string) error {
	exists, err := s.client.SIsMember(ctx, s.idsKey(), id).Result()
	if err != nil {
		return fmt.Errorf("failed to check session ID: %w", err)
	}
	if !exists {
		return ErrSessionNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.prefix+id)
	pipe.SRem(ctx, s.idsKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session metadata from Redis: %w", err)
	}

	if err := s.publishUpdate(ctx, "unregister", &Meta{ID: id}); err != nil {
		s.logger.Warn("failed to publish session update", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// List implements Store.List. IDs whose metadata expired are pruned.
func (s *RedisStore) List(ctx context.Context) ([]*Meta, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session IDs: %w", err)
	}

	metas := make([]*Meta, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			s.client.SRem(ctx, s.idsKey(), id)
			continue
		}
		if err != nil {
			s.logger.Error("failed to get session metadata", zap.String("id", id), zap.Error(err))
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	return metas, nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
