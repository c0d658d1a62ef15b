package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rassdread/homecheff-app-sub014/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "test-scope", 2, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first request allowed with count 1, got %v %d", allowed, count)
	}
	if got := mock.windows["hc:rate_limit:test-scope"]; got != 1500 {
		t.Fatalf("expected window armed in ms, got %d", got)
	}

	allowed, count, _ = client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	allowed, _, _ = client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestFixedWindowAllowSurfacesScriptErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.evalErr = errors.New("READONLY replica")
	client := &Client{store: mock}
	if _, _, err := client.FixedWindowAllow(context.Background(), "s", 1, time.Second); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	mock.data["hc:lock"] = "host:a"

	deleted, err := client.CompareAndDelete(ctx, "hc:lock", "host:b")
	if err != nil || deleted {
		t.Fatalf("foreign value must stay, deleted=%v err=%v", deleted, err)
	}
	deleted, err = client.CompareAndDelete(ctx, "hc:lock", "host:a")
	if err != nil || !deleted {
		t.Fatalf("expected delete, deleted=%v err=%v", deleted, err)
	}
	if _, ok := mock.data["hc:lock"]; ok {
		t.Fatal("key still present")
	}
}

func TestGetThenDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.CountdownKey("delivery-1")
	if err := client.Set(ctx, key, "1700000000", time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		value, err := client.Get(ctx, key)
		if err != nil || value != "1700000000" {
			t.Fatalf("unexpected get %q %v", value, err)
		}
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after del, got %v", err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("unexpected ping error %v", err)
	}
	if _, err := client.CompareAndDelete(context.Background(), "k", "v"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("unexpected compare error %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"): "hc:idempotency:scope:id",
		client.RateLimitKey("scope"):         "hc:rate_limit:scope",
		client.CountdownKey("abc"):           "hc:countdown:abc",
		client.AccessSessionKey("jti"):       "hc:session:access:jti",
		client.IdempotencyKey(" scope ", ""): "hc:idempotency:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/2", PoolSize: 20, DB: 5})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.PoolSize != 20 {
		t.Fatalf("url settings should win, got %+v", opts)
	}
	opts, _ = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 3, DialTimeout: time.Second})
	if opts.DB != 3 || opts.DialTimeout != time.Second {
		t.Fatalf("discrete settings not applied: %+v", opts)
	}
}

type mockCmdable struct {
	data    map[string]string
	counts  map[string]int64
	windows map[string]int64
	evalErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:    map[string]string{},
		counts:  map[string]int64{},
		windows: map[string]int64{},
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the two scripts the client ships.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.counts[key]++
		if m.counts[key] == 1 {
			m.windows[key] = args[0].(int64)
		}
		return redis.NewCmdResult(m.counts[key], nil)
	case compareAndDeleteScript:
		if m.data[key] == args[0] {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
