package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the shared Redis client. Zero values fall back to defaults
// sized for the scheduling workload.
type Options struct {
	Addr     string
	Username string
	Password string

	// PoolSize caps concurrent connections; it should track the HTTP
	// server's expected parallelism, not exceed it.
	PoolSize int

	// OpTimeout bounds individual reads and writes. Slot locks are
	// short-lived, so a slow Redis should fail fast rather than queue.
	OpTimeout time.Duration
}

const (
	defaultPoolSize  = 10
	defaultOpTimeout = 2 * time.Second
)

func NewRedisClient(opts Options) (*redis.Client, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           0,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
