package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sketchstacker/server/internal/gallery"
	"github.com/sketchstacker/server/internal/observability"
)

// SessionFactory builds a fresh viewer session
type SessionFactory func() *gallery.Session

// SessionCache is a thread-safe in-memory cache of viewer sessions with a sliding TTL.
// When maxSessions is reached the session closest to expiry is evicted.
type SessionCache struct {
	mu          sync.RWMutex
	items       map[string]*sessionItem
	ttl         time.Duration
	maxSessions int
	factory     SessionFactory
	metrics *observability.BusinessMetrics
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type sessionItem struct {
	session   *gallery.Session
	expiresAt time.Time
}

// NewSessionCache creates a cache and starts its cleanup loop; call Close to stop it.
// maxSessions <= 0 leaves the cache unbounded.
func NewSessionCache(ttl time.Duration, maxSessions int, factory SessionFactory, metrics *observability.BusinessMetrics) *SessionCache {
	cache := &SessionCache{
		items:       make(map[string]*sessionItem),
		ttl:         ttl,
		maxSessions: maxSessions,
		factory:     factory,
		metrics:     metrics,
		now:         time.Now,
		stop:        make(chan struct{}),
	}

	interval := ttl / 2
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	go cache.cleanupLoop(interval)

	return cache
}

// Get returns the live session for id and extends its lifetime
func (c *SessionCache) Get(id string) (*gallery.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}
	item.expiresAt = c.now().Add(c.ttl)
	return item.session, true
}

// GetOrCreate returns the session for id, creating one under a new id when
// id is empty, unknown or expired. created reports whether a new session was made.
func (c *SessionCache) GetOrCreate(id string) (sessionID string, session *gallery.Session, created bool) {
	if s, ok := c.Get(id); ok {
		return id, s, false
	}

	sessionID = uuid.New().String()
	session = c.factory()

	c.mu.Lock()
	evicted := c.makeRoom()
	c.items[sessionID] = &sessionItem{session: session, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	for i := 0; i < evicted; i++ {
		c.metrics.SessionClosed(context.Background())
	}
	c.metrics.SessionOpened(context.Background())
	return sessionID, session, true
}

// makeRoom drops expired sessions and then the ones closest to expiry until
// a new session fits. Caller holds c.mu.
func (c *SessionCache) makeRoom() int {
	if c.maxSessions <= 0 || len(c.items) < c.maxSessions {
		return 0
	}

	removed := 0
	now := c.now()
	for id, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, id)
			removed++
		}
	}

	for len(c.items) >= c.maxSessions {
		var oldestID string
		var oldest time.Time
		for id, item := range c.items {
			if oldestID == "" || item.expiresAt.Before(oldest) {
				oldestID, oldest = id, item.expiresAt
			}
		}
		delete(c.items, oldestID)
		removed++
	}

	if removed > 0 {
		observability.Debugf("Evicted %d viewer sessions to stay under %d", removed, c.maxSessions)
	}
	return removed
}

// Invalidate drops a session so the next request starts fresh
func (c *SessionCache) Invalidate(id string) {
	c.mu.Lock()
	_, ok := c.items[id]
	delete(c.items, id)
	c.mu.Unlock()

	if ok {
		c.metrics.SessionClosed(context.Background())
	}
}

// Size returns the number of cached sessions
func (c *SessionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close stops the cleanup loop
func (c *SessionCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *SessionCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *SessionCache) removeExpired() int {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for id, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, id)
			removed++
		}
	}
	c.mu.Unlock()

	for i := 0; i < removed; i++ {
		c.metrics.SessionClosed(context.Background())
	}
	if removed > 0 {
		observability.Debugf("Expired %d viewer sessions", removed)
	}
	return removed
}
