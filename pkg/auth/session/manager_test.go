package session

import (
	"context"
	"errors"
	"testing"

	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	data map[string]string
	err  error
}

func (m *mockStore) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

type prefixKeyer struct{}

func (prefixKeyer) AccessSessionKey(accessID string) string {
	return "hc:session:access:" + accessID
}

func TestHasSession(t *testing.T) {
	store := &mockStore{data: map[string]string{"hc:session:access:live": "1"}}
	checker := &Checker{store: store, keyer: prefixKeyer{}}

	ok, err := checker.HasSession(context.Background(), "live")
	if err != nil || !ok {
		t.Fatalf("expected live session, ok=%v err=%v", ok, err)
	}

	ok, err = checker.HasSession(context.Background(), "gone")
	if err != nil || ok {
		t.Fatalf("expected missing session, ok=%v err=%v", ok, err)
	}
}

func TestHasSessionPropagatesStoreErrors(t *testing.T) {
	checker := &Checker{store: &mockStore{err: errors.New("redis down")}, keyer: prefixKeyer{}}
	if _, err := checker.HasSession(context.Background(), "any"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := checker.HasSession(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty access id")
	}
}
