package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if value, ok := m.values[key]; !ok || value != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "hc:cron:lock", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "hc:cron:lock", 0)

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first acquire, got %v %v", ok, err)
	}
	if store.ttls["hc:cron:lock"] != defaultLockTTL {
		t.Fatalf("unexpected ttl %s", store.ttls["hc:cron:lock"])
	}
	if !strings.Contains(first.Owner(), ":") {
		t.Fatalf("owner should carry host prefix, got %q", first.Owner())
	}
	if ok, _ := second.Acquire(context.Background()); ok {
		t.Fatal("second replica must not acquire a held lock")
	}

	// release by a non-owner is a no-op
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, held := store.values["hc:cron:lock"]; !held {
		t.Fatal("lock released by non-owner")
	}

	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := second.Acquire(context.Background()); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestRedisLockKeepsForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("expected acquire")
	}
	// TTL lapsed and another replica took over
	store.values["k"] = "other:owner"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values["k"] != "other:owner" {
		t.Fatalf("foreign lock was removed")
	}
	if lock.Owner() != "" {
		t.Fatalf("owner should reset after release")
	}
}

func TestRedisLockReleaseErrorStillDropsOwnership(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("expected acquire")
	}
	store.err = errors.New("connection reset")
	if err := lock.Release(context.Background()); err == nil {
		t.Fatal("expected release error")
	}
	if lock.Owner() != "" {
		t.Fatal("owner should reset even when release fails")
	}
}
