package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.SessionRedisConfig{
		ClusterType: utils.RedisSingle,
		Addr:        mr.Addr(),
		Topic:       "mdprovider:sessions",
		Prefix:      "testsess:",
		TTL:         5 * time.Second,
	}
	store, err := NewRedisStore(context.Background(), zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestNewRedisStore_ConnectionError(t *testing.T) {
	cfg := config.SessionRedisConfig{Addr: "127.0.0.1:0"}
	s, err := NewRedisStore(context.Background(), zap.NewNop(), cfg)
	assert.Nil(t, s)
	assert.Error(t, err)
}

func TestRedisStore_RegisterGetListUnregister(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	meta := &Meta{ID: "sid-1", CreatedAt: time.Now(), RemoteAddr: "127.0.0.1:1"}
	require.NoError(t, store.Register(ctx, meta))
	assert.True(t, mr.Exists("testsess:sid-1"))
	assert.Greater(t, mr.TTL("testsess:sid-1"), time.Duration(0))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1", got.RemoteAddr)

	meta.LoggedIn = true
	meta.User = "bob"
	require.NoError(t, store.Register(ctx, meta))
	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, got.LoggedIn)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].User)

	require.NoError(t, store.Unregister(ctx, "sid-1"))
	_, err = store.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Unregister(ctx, "sid-1"), ErrSessionNotFound)
}

func TestRedisStore_ListPrunesExpired(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, &Meta{ID: "gone"}))
	mr.Del("testsess:gone")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	ok, err := mr.SIsMember("testsess:ids", "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_PublishesUpdates(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sub := store.client.Subscribe(ctx, "mdprovider:sessions")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Register(ctx, &Meta{ID: "sid-2"}))

	select {
	case msg := <-sub.Channel():
		var u Update
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
		assert.Equal(t, "register", u.Action)
		assert.Equal(t, "sid-2", u.Meta.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no session update published")
	}
}

func TestNewStore_Factory(t *testing.T) {
	s, err := NewStore(context.Background(), zap.NewNop(), &config.SessionConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(context.Background(), zap.NewNop(), &config.SessionConfig{Type: "etcd"})
	assert.Error(t, err)
}
