package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions is the subset of connection settings the service exposes
// through config.
type ClientOptions struct {
	Addr     string
	Username string
	Password string
	// PoolSize defaults to 10 when zero.
	PoolSize int
}

func (o ClientOptions) redisOptions() *redis.Options {
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	return &redis.Options{
		Addr:     o.Addr,
		Username: o.Username,
		Password: o.Password,
		DB:       0,

		// lock acquisition and cache reads must give up when the request does
		ContextTimeoutEnabled: true,
		DialTimeout:           2 * time.Second,
		ReadTimeout:           time.Second,
		WriteTimeout:          time.Second,
		PoolSize:              poolSize,
		MinIdleConns:          1,
	}
}

// NewRedisClient connects and pings; the client is closed again if the ping
// fails.
func NewRedisClient(ctx context.Context, opts ClientOptions) (*redis.Client, error) {
	rdb := redis.NewClient(opts.redisOptions())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return rdb, nil
}
