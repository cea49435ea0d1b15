package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchstacker/server/internal/gallery"
)

type staticManifest []string

func (m staticManifest) FetchManifest(ctx context.Context) ([]string, error) {
	return m, nil
}

func newTestSessionCache(t *testing.T, ttl time.Duration) (*SessionCache, *time.Time) {
	return newBoundedSessionCache(t, ttl, 0)
}

func newBoundedSessionCache(t *testing.T, ttl time.Duration, maxSessions int) (*SessionCache, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewSessionCache(ttl, maxSessions, func() *gallery.Session {
		return gallery.NewSession(staticManifest{"1700000000000.png"}, gallery.SessionConfig{BatchSize: 10})
	}, nil)
	cache.now = func() time.Time { return now }
	t.Cleanup(cache.Close)
	return cache, &now
}

func TestSessionCache_GetOrCreate(t *testing.T) {
	cache, _ := newTestSessionCache(t, time.Minute)

	id, s1, created := cache.GetOrCreate("")
	require.True(t, created)
	require.NotEmpty(t, id)
	require.NoError(t, s1.Load(context.Background()))

	sameID, s2, created := cache.GetOrCreate(id)
	assert.False(t, created)
	assert.Equal(t, id, sameID)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, cache.Size())

	t.Run("unknown id gets a new session", func(t *testing.T) {
		newID, _, created := cache.GetOrCreate("not-a-session")
		assert.True(t, created)
		assert.NotEqual(t, "not-a-session", newID)
	})
}

func TestSessionCache_Expiry(t *testing.T) {
	cache, now := newTestSessionCache(t, time.Minute)

	id, _, _ := cache.GetOrCreate("")

	*now = now.Add(45 * time.Second)
	_, ok := cache.Get(id)
	require.True(t, ok, "access slides the expiry")

	*now = now.Add(45 * time.Second)
	_, ok = cache.Get(id)
	require.True(t, ok)

	*now = now.Add(2 * time.Minute)
	_, ok = cache.Get(id)
	assert.False(t, ok)

	assert.Equal(t, 1, cache.removeExpired())
	assert.Zero(t, cache.Size())
}

func TestSessionCache_Invalidate(t *testing.T) {
	cache, _ := newTestSessionCache(t, time.Minute)

	id, _, _ := cache.GetOrCreate("")
	cache.Invalidate(id)

	_, ok := cache.Get(id)
	assert.False(t, ok)
	assert.Zero(t, cache.Size())

	cache.Invalidate("missing")
}

func TestSessionCache_MaxSessions(t *testing.T) {
	cache, now := newBoundedSessionCache(t, time.Minute, 2)

	first, _, _ := cache.GetOrCreate("")
	*now = now.Add(time.Second)
	second, _, _ := cache.GetOrCreate("")
	*now = now.Add(time.Second)

	// touching the first session makes the second the closest to expiry
	_, ok := cache.Get(first)
	require.True(t, ok)

	third, _, created := cache.GetOrCreate("")
	require.True(t, created)
	assert.Equal(t, 2, cache.Size())

	_, ok = cache.Get(second)
	assert.False(t, ok, "least recently used session is evicted")
	_, ok = cache.Get(first)
	assert.True(t, ok)
	_, ok = cache.Get(third)
	assert.True(t, ok)

	t.Run("cookieless requests stay bounded", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			cache.GetOrCreate("")
		}
		assert.Equal(t, 2, cache.Size())
	})
}

func TestSessionCache_MaxSessionsPrefersExpired(t *testing.T) {
	cache, now := newBoundedSessionCache(t, time.Minute, 2)

	stale, _, _ := cache.GetOrCreate("")
	*now = now.Add(50 * time.Second)
	live, _, _ := cache.GetOrCreate("")
	*now = now.Add(20 * time.Second)

	cache.GetOrCreate("")
	assert.Equal(t, 2, cache.Size())

	_, ok := cache.Get(live)
	assert.True(t, ok)
	_, ok = cache.Get(stale)
	assert.False(t, ok)
}

func TestSessionCache_ConcurrentAccess(t *testing.T) {
	cache, _ := newTestSessionCache(t, time.Minute)
	id, _, _ := cache.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, s, _ := cache.GetOrCreate(id)
			s.RevealNext()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Size())
}
