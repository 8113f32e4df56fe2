package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis topologies accepted by NewRedisClient
const (
	RedisSingle   = "single"
	RedisSentinel = "sentinel"
	RedisCluster  = "cluster"
)

// RedisOptions is the connection part shared by every redis backed component.
type RedisOptions struct {
	ClusterType string
	Addr        string // one or more addresses separated by ';' or ','
	MasterName  string
	Username    string
	Password    string
	DB          int
}

// NewRedisClient builds a universal client for the configured topology and
// pings it once.
func NewRedisClient(ctx context.Context, opts RedisOptions) (redis.UniversalClient, error) {
	addrs := splitAddrs(opts.Addr)
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: opts.Username,
		Password: opts.Password,
	}
	if opts.ClusterType == RedisSentinel {
		redisOptions.MasterName = opts.MasterName
	}
	if opts.ClusterType != RedisCluster {
		// can not set db in cluster mode
		redisOptions.DB = opts.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// splitAddrs splits an address list on ';' or ',' and drops blanks.
func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
