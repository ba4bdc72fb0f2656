package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/sqlroom/sqlroom/internal/schema"
)

// NewLocker returns a redis-backed advisory lock when a redis URL is
// configured, otherwise an in-process one. The in-process variant only
// protects a single instance; multi-instance deployments need redis.
func NewLocker(redisURL string, ttl time.Duration) (schema.Locker, error) {
	if redisURL == "" {
		return &localLocker{locks: make(map[string]*sync.Mutex)}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info.Println("Using redis-backed deploy locks")
	return &redisLocker{client: client, ttl: ttl}, nil
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "deploy_lock:" + key
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, "1", l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire deploy lock: %w", err)
		}
		if ok {
			return func() {
				if err := l.client.Del(context.Background(), lockKey).Err(); err != nil {
					logger.Error.Printf("Failed to release deploy lock %s: %v", lockKey, err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("deploy lock wait cancelled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
