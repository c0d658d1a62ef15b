package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// defaultLockTTL stays below the default cycle so a crashed worker does not
// skip the next run.
const defaultLockTTL = 9 * time.Minute

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock holds hc:cron lock ownership with SETNX and a TTL. The stored value
// names the replica so a stuck lock can be traced to its worker.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	host  string
	owner string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "cron-worker"
	}
	return &RedisLock{store: store, key: key, ttl: ttl, host: host}, nil
}

// Owner is the value written by the last successful Acquire.
func (l *RedisLock) Owner() string { return l.owner }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := l.host + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire cron lock %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release deletes the key only while this replica still owns it; after the TTL
// lapsed another replica may hold it. The check and delete run server side.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.store.CompareAndDelete(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release cron lock %s: %w", l.key, err)
	}
	return nil
}
