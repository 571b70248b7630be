package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, KeyAuthToken); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	values := map[string]string{
		KeyAuthToken:      "T1",
		KeyRefreshToken:   "R1",
		KeyRole:           "admin",
		KeyID:             "U1",
		KeyTokenTimestamp: "1700000000000",
	}
	if err := SetAll(ctx, st, values); err != nil {
		t.Fatalf("set all: %v", err)
	}
	for k, want := range values {
		got, ok, err := st.Get(ctx, k)
		if err != nil || !ok || got != want {
			t.Fatalf("get %s: got %q ok=%v err=%v, want %q", k, got, ok, err, want)
		}
	}

	if err := st.Set(ctx, KeyAuthToken, "T2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _, _ := st.Get(ctx, KeyAuthToken); got != "T2" {
		t.Fatalf("expected overwrite to T2, got %q", got)
	}

	if err := st.Remove(ctx, Keys...); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := st.Remove(ctx, Keys...); err != nil {
		t.Fatalf("second remove must be a no-op: %v", err)
	}
	for _, k := range Keys {
		if _, ok, err := st.Get(ctx, k); err != nil || ok {
			t.Fatalf("expected %s removed, got ok=%v err=%v", k, ok, err)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(nil))
}

func TestMemorySeedIsCopied(t *testing.T) {
	seed := map[string]string{KeyRole: "agent"}
	m := NewMemory(seed)
	seed[KeyRole] = "admin"
	if got := m.Dump()[KeyRole]; got != "agent" {
		t.Fatalf("expected seed copy, got %q", got)
	}
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")))
}

func TestFileStoreSurvivesReopenAndRestrictsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	if err := NewFileStore(path).Set(ctx, KeyAuthToken, "T1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := NewFileStore(path).Get(ctx, KeyAuthToken)
	if err != nil || !ok || got != "T1" {
		t.Fatalf("reopen get: got %q ok=%v err=%v", got, ok, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected mode 0600, got %o", perm)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _, err := NewFileStore(path).Get(context.Background(), KeyAuthToken)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func newRedisStoreTest(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "immo:admin", ttl), mr, rdb
}

func TestRedisStore(t *testing.T) {
	st, _, _ := newRedisStoreTest(t, 0)
	exerciseStore(t, st)
}

func TestRedisStorePrefixAndTTL(t *testing.T) {
	st, mr, _ := newRedisStoreTest(t, time.Hour)
	ctx := context.Background()

	if err := st.Set(ctx, KeyRole, "admin"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("immo:admin:role") {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
	if ttl := mr.TTL("immo:admin:role"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, err := st.Get(ctx, KeyRole); err != nil || ok {
		t.Fatalf("expected key to age out, ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	st := NewRedisStore(rdb, "immo", 0)
	mr.Close()

	if _, _, err := st.Get(context.Background(), KeyAuthToken); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on get, got %v", err)
	}
	if err := st.SetAll(context.Background(), map[string]string{KeyAuthToken: "T"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on set all, got %v", err)
	}
	if _, err := st.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on ping, got %v", err)
	}
}
