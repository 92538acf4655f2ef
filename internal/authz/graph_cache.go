package authz

import (
	"context"
	"sync"
	"time"

	"github.com/suleymanmyradov/authcore/shared/models"
)

// GraphBuilder is the minimal surface GraphCache needs from the tuple
// store to (re)build a Graph; satisfied by relationship.Store.
type GraphBuilder interface {
	ListAllValid(ctx context.Context) ([]models.Relationship, error)
}

// entry is the cached graph plus its expiry, grounded on
// original_source's CacheEntry (Rust's RwLock<Option<CacheEntry>>
// becomes Go's sync.RWMutex guarding a pointer swap).
type entry struct {
	graph     *Graph
	expiresAt time.Time
}

// Cache is the process-wide authorization graph cache (C6): readers
// never block readers; the single writer rebuilds off-lock and swaps
// the pointer, per spec §9's "global mutable state" design note.
type Cache struct {
	mu      sync.RWMutex
	current *entry
	ttl     time.Duration
	builder GraphBuilder
}

func NewCache(builder GraphBuilder, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Cache{builder: builder, ttl: ttl}
}

// GetCached returns the cached graph without rebuilding, or nil if
// absent or expired.
func (c *Cache) GetCached() *Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || !time.Now().Before(c.current.expiresAt) {
		return nil
	}
	return c.current.graph
}

// GetOrBuild returns the cached graph if still fresh, otherwise builds
// a new one off-lock from builder and swaps the pointer in.
func (c *Cache) GetOrBuild(ctx context.Context) (*Graph, error) {
	if g := c.GetCached(); g != nil {
		return g, nil
	}
	relationships, err := c.builder.ListAllValid(ctx)
	if err != nil {
		return nil, err
	}
	g := NewGraph(relationships)
	c.set(g)
	return g, nil
}

func (c *Cache) set(g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &entry{graph: g, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate drops the cached graph; the next GetOrBuild rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// Refresh forces an immediate rebuild, bypassing any still-fresh entry.
func (c *Cache) Refresh(ctx context.Context) (*Graph, error) {
	c.Invalidate()
	return c.GetOrBuild(ctx)
}

// IsValid reports whether a non-expired graph is currently cached.
func (c *Cache) IsValid() bool {
	return c.GetCached() != nil
}
