// Package idcache maps gateway-side entity ids (guilds, channels, roles) to
// apps and back. Each cache is owned explicitly by the component that needs
// it and passed by handle, never held as ambient global state.
package idcache

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is one mapping: an external id serves a purpose for an app.
type Entry[ID comparable, Purpose comparable] struct {
	ID      ID
	Purpose Purpose
	AppID   uuid.UUID
}

type appKey[P comparable] struct {
	app     uuid.UUID
	purpose P
}

type idKey[ID comparable, P comparable] struct {
	id      ID
	purpose P
}

// Cache is a concurrent bidirectional map between (app, purpose) and
// (id, purpose). Population is idempotent, last write wins per key.
type Cache[ID comparable, Purpose comparable] struct {
	mu      sync.RWMutex
	idByApp map[appKey[Purpose]]ID
	appByID map[idKey[ID, Purpose]]uuid.UUID
}

// New returns an empty cache.
func New[ID comparable, Purpose comparable]() *Cache[ID, Purpose] {
	return &Cache[ID, Purpose]{
		idByApp: make(map[appKey[Purpose]]ID),
		appByID: make(map[idKey[ID, Purpose]]uuid.UUID),
	}
}

// Populate inserts or overwrites the given entries in one critical section.
func (c *Cache[ID, Purpose]) Populate(entries []Entry[ID, Purpose]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.idByApp[appKey[Purpose]{app: e.AppID, purpose: e.Purpose}] = e.ID
		c.appByID[idKey[ID, Purpose]{id: e.ID, purpose: e.Purpose}] = e.AppID
	}
}

// IDFor looks up the external id serving a purpose for an app.
func (c *Cache[ID, Purpose]) IDFor(appID uuid.UUID, purpose Purpose) (ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.idByApp[appKey[Purpose]{app: appID, purpose: purpose}]
	return id, ok
}

// AppFor looks up the app an external id serves a purpose for.
func (c *Cache[ID, Purpose]) AppFor(id ID, purpose Purpose) (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	app, ok := c.appByID[idKey[ID, Purpose]{id: id, purpose: purpose}]
	return app, ok
}
