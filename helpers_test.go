package goSession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/client"
	"github.com/MrEthical07/goSession/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAuth struct {
	login   func(ctx context.Context, email, password string) (client.LoginResult, error)
	refresh func(ctx context.Context, refreshToken string) (client.RefreshResult, error)

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (client.LoginResult, error) {
	f.loginCalls.Add(1)
	if f.login == nil {
		return client.LoginResult{}, errors.New("login not stubbed")
	}
	return f.login(ctx, email, password)
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (client.RefreshResult, error) {
	f.refreshCalls.Add(1)
	if f.refresh == nil {
		return client.RefreshResult{}, errors.New("refresh not stubbed")
	}
	return f.refresh(ctx, refreshToken)
}

func loginReturns(token, refresh, id, role string) func(context.Context, string, string) (client.LoginResult, error) {
	return func(context.Context, string, string) (client.LoginResult, error) {
		return client.LoginResult{
			Token:        token,
			RefreshToken: refresh,
			User:         client.User{ID: id, Role: role},
		}, nil
	}
}

// failingStore wraps a Memory store and fails writes or reads on demand.
type failingStore struct {
	inner     *storage.Memory
	failSet   atomic.Bool
	failGet   atomic.Bool
	failClear atomic.Bool
}

func newFailingStore() *failingStore {
	return &failingStore{inner: storage.NewMemory(nil)}
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet.Load() {
		return "", false, storage.ErrUnavailable
	}
	return s.inner.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.failSet.Load() {
		return storage.ErrUnavailable
	}
	return s.inner.Set(ctx, key, value)
}

func (s *failingStore) Remove(ctx context.Context, keys ...string) error {
	if s.failClear.Load() {
		return storage.ErrUnavailable
	}
	return s.inner.Remove(ctx, keys...)
}

type testManagerOpts struct {
	auth   Authenticator
	store  storage.Store
	clock  *fakeClock
	mutate func(*Config)
	sink   AuditSink
}

func newTestManager(t *testing.T, o testManagerOpts) *Manager {
	t.Helper()

	if o.auth == nil {
		o.auth = &fakeAuth{}
	}
	if o.store == nil {
		o.store = storage.NewMemory(nil)
	}
	if o.clock == nil {
		o.clock = newFakeClock()
	}

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	if o.mutate != nil {
		o.mutate(&cfg)
	}

	m, err := New().
		WithConfig(cfg).
		WithAuthenticator(o.auth).
		WithStore(o.store).
		WithClock(o.clock.Now).
		WithAuditSink(o.sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
