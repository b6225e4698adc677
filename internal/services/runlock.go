package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock guards against overlapping pipeline runs. The redis-backed lock
// covers multiple scheduler hosts sharing one database; the local lock covers
// the single-process case.
type RunLock interface {
	// Acquire returns false without error when another run holds the lock.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type localRunLock struct {
	mu sync.Mutex
}

// NewLocalRunLock returns an in-process run lock.
func NewLocalRunLock() RunLock {
	return &localRunLock{}
}

func (l *localRunLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *localRunLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}

type redisRunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisRunLock returns a SetNX-based lock with a TTL safety net, so a
// crashed run cannot block the schedule forever.
func NewRedisRunLock(client *redis.Client, key string, ttl time.Duration) RunLock {
	return &redisRunLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

func (l *redisRunLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

func (l *redisRunLock) Release(ctx context.Context) error {
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read run lock: %w", err)
	}
	// Only the holder may release; an expired lock may already belong to a
	// newer run.
	if current != l.token {
		return nil
	}
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}
