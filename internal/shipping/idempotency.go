package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rassdread/homecheff-app-sub014/pkg/redis"
)

// IdempotencyGuard drops exact webhook replays using redis SETNX.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports true when the event was seen before.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, carrier, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(carrier, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete forgets an event so a carrier retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, carrier, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.key(carrier, eventID))
}

func (g *IdempotencyGuard) key(carrier, eventID string) string {
	return g.store.IdempotencyKey(g.scope+":"+carrier, eventID)
}
