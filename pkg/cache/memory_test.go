package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T, opts ...MemoryOption) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCacheSetGet(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	in := sample{Name: "basketball_nba", Count: 3}
	if err := mc.Set(ctx, "k1", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out sample
	if err := mc.Get(ctx, "k1", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := newTestCache(t)

	var out sample
	if err := mc.Get(context.Background(), "absent", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheClear(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	_ = mc.Set(ctx, "b", "2", time.Minute)

	if err := mc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	var out string
	for _, key := range []string{"a", "b"} {
		if err := mc.Get(ctx, key, &out); !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("expected %q gone after clear, got %v", key, err)
		}
	}
	if entries := mc.Stats().Entries; entries != 0 {
		t.Errorf("entries = %d after clear, want 0", entries)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	if err := mc.Set(ctx, "short", "value", 30*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	var out string
	if err := mc.Get(ctx, "short", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	_ = mc.Set(ctx, "b", "2", time.Minute)

	if err := mc.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var out string
	if err := mc.Get(ctx, "a", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryCacheExists(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "present", "x", time.Minute)

	ok, err := mc.Exists(ctx, "present")
	if err != nil || !ok {
		t.Fatalf("exists(present) = %v, %v", ok, err)
	}
	ok, err = mc.Exists(ctx, "absent")
	if err != nil || ok {
		t.Fatalf("exists(absent) = %v, %v", ok, err)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := newTestCache(t, WithMemoryMaxSize(2))
	ctx := context.Background()

	_ = mc.Set(ctx, "old", "1", time.Minute)
	time.Sleep(5 * time.Millisecond)
	_ = mc.Set(ctx, "mid", "2", time.Minute)
	time.Sleep(5 * time.Millisecond)

	// Touch "old" so "mid" becomes the eviction candidate.
	var out string
	if err := mc.Get(ctx, "old", &out); err != nil {
		t.Fatalf("get old: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_ = mc.Set(ctx, "new", "3", time.Minute)

	if err := mc.Get(ctx, "mid", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected mid evicted, got %v", err)
	}
	if err := mc.Get(ctx, "old", &out); err != nil {
		t.Fatalf("old should survive: %v", err)
	}
	if err := mc.Get(ctx, "new", &out); err != nil {
		t.Fatalf("new should be present: %v", err)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", "v", time.Minute)

	var out string
	_ = mc.Get(ctx, "k", &out)
	_ = mc.Get(ctx, "k", &out)
	_ = mc.Get(ctx, "absent", &out)

	st := mc.Stats()
	if st.Hits != 2 {
		t.Errorf("hits = %d, want 2", st.Hits)
	}
	if st.Misses != 1 {
		t.Errorf("misses = %d, want 1", st.Misses)
	}
	if st.Entries != 1 {
		t.Errorf("entries = %d, want 1", st.Entries)
	}
	if ratio := st.HitRatio(); ratio < 0.66 || ratio > 0.67 {
		t.Errorf("hit ratio = %f, want ~0.667", ratio)
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := newTestCache(t)
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock = %v, %v", ok, err)
	}
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock should fail, got %v, %v", ok, err)
	}

	if err := mc.Unlock(ctx, "lock"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("relock after unlock = %v, %v", ok, err)
	}
}

func TestClassesFor(t *testing.T) {
	classes := Classes{
		Metadata: 6 * time.Hour,
		GameList: 5 * time.Minute,
		LiveOdds: 90 * time.Second,
	}

	if got := classes.For(ClassMetadata); got != 6*time.Hour {
		t.Errorf("metadata ttl = %s", got)
	}
	if got := classes.For(ClassGameList); got != 5*time.Minute {
		t.Errorf("gamelist ttl = %s", got)
	}
	if got := classes.For(ClassLiveOdds); got != 90*time.Second {
		t.Errorf("liveodds ttl = %s", got)
	}
	if got := classes.For(Class("unknown")); got != 90*time.Second {
		t.Errorf("unknown class should default to live odds tier, got %s", got)
	}
}
