package delivery

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Countdown tracks how long one delivery order takes from pickup to
// drop-off. Each delivery order of an order runs its own countdown.
type Countdown interface {
	Start(ctx context.Context, deliveryOrderID uuid.UUID, at time.Time) error
	// Elapsed returns whole minutes since Start without ending the countdown,
	// or nil when none runs.
	Elapsed(ctx context.Context, deliveryOrderID uuid.UUID, at time.Time) (*int, error)
	Clear(ctx context.Context, deliveryOrderID uuid.UUID) error
}

type countdownStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CountdownKey(deliveryOrderID string) string
}

// RedisCountdown keeps the pickup unix time under hc:countdown:<deliveryOrderID>.
type RedisCountdown struct {
	store countdownStore
	ttl   time.Duration
}

func NewRedisCountdown(store countdownStore, ttl time.Duration) *RedisCountdown {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCountdown{store: store, ttl: ttl}
}

func (c *RedisCountdown) Start(ctx context.Context, deliveryOrderID uuid.UUID, at time.Time) error {
	return c.store.Set(ctx, c.key(deliveryOrderID), at.Unix(), c.ttl)
}

func (c *RedisCountdown) Elapsed(ctx context.Context, deliveryOrderID uuid.UUID, at time.Time) (*int, error) {
	raw, err := c.store.Get(ctx, c.key(deliveryOrderID))
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	started, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}
	elapsed := max(at.Sub(time.Unix(started, 0)), 0)
	minutes := int(elapsed / time.Minute)
	return &minutes, nil
}

func (c *RedisCountdown) Clear(ctx context.Context, deliveryOrderID uuid.UUID) error {
	return c.store.Del(ctx, c.key(deliveryOrderID))
}

func (c *RedisCountdown) key(deliveryOrderID uuid.UUID) string {
	return c.store.CountdownKey(deliveryOrderID.String())
}
