package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/suleymanmyradov/authcore/shared/models"
)

const defaultCacheSize = 10_000

// Cache is the in-process, write-through session cache (spec §4.8),
// keyed by session_token. Every entry expires after the one cache-wide
// TTL given to NewCache; entries do not carry their own expiry, so a
// cached session's expires_at is checked by callers (IsLive) on read
// and by CleanupExpired. The
// teacher never implements an in-process cache of its own, so this is
// wired wholesale from hashicorp-nomad's golang-lru/v2 dependency.
type Cache struct {
	lru *expirable.LRU[string, models.Session]
}

// NewCache builds a cache whose entries expire after ttl if not
// refreshed; ttl should track the configured session TTL so a stale
// cache entry never outlives a session's own expiry by much.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, models.Session](defaultCacheSize, nil, ttl)}
}

func (c *Cache) Get(token string) (*models.Session, bool) {
	s, ok := c.lru.Get(token)
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *Cache) Set(token string, s models.Session) {
	c.lru.Add(token, s)
}

func (c *Cache) Remove(token string) {
	c.lru.Remove(token)
}

// CleanupExpired drops cached entries whose own expires_at has
// passed; expirable.LRU already evicts by TTL lazily, this walks the
// live keys to evict sessions whose domain-level expiry is earlier
// than the cache TTL would otherwise allow.
func (c *Cache) CleanupExpired(now time.Time) {
	for _, token := range c.lru.Keys() {
		s, ok := c.lru.Peek(token)
		if !ok {
			continue
		}
		if s.IsExpired(now) {
			c.lru.Remove(token)
		}
	}
}
