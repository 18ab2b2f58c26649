// Package cache implements the connection manager's single-slot connection
// cache: at most one open upstream connection is held at a time, served to
// and invalidated by the dispatcher in package connmgr.
package cache

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/klevein/httpconnmgr/connmgr/internal/conn"
)

// Cache holds at most one open conn.Connection.
type Cache struct {
	mu   sync.Mutex
	conn conn.Connection
	gen  atomic.Uint64
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Find returns the cached connection, ignoring host and port: the cache is
// deliberately host-agnostic, "single connection, last-writer-wins" (see
// DESIGN.md). Returns nil if the slot is empty.
func (c *Cache) Find(host string, port uint16) conn.Connection {
	_, _ = host, port
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Release clears the slot and releases the underlying connection. found
// must be the currently cached connection; calling Release on an empty slot
// or on a connection that isn't the cached one is a caller bug.
func (c *Cache) Release(found conn.Connection) error {
	c.mu.Lock()
	if c.conn == nil || c.conn != found {
		c.mu.Unlock()
		return fmt.Errorf("cache: release called with non-cached connection")
	}
	c.conn = nil
	c.gen.Inc()
	c.mu.Unlock()

	return found.Release()
}

// Install sets the slot. The slot must already be empty: the dispatcher
// always releases the previous connection before installing a new one, so
// there is no eviction path here.
func (c *Cache) Install(cn conn.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return fmt.Errorf("cache: install called with a connection already cached")
	}
	c.conn = cn
	c.gen.Inc()
	return nil
}

// Generation returns a counter bumped on every Install and Release, used by
// the cache tests to observe state transitions without racing on the cached
// connection pointer itself.
func (c *Cache) Generation() uint64 {
	return c.gen.Load()
}
