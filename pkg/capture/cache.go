package capture

import (
	"sync"

	"flowsync/pkg/models"
)

// Cache is the process-lifetime id -> workflow lookup populated on every
// save so a later delete notification carrying only an id can still be
// resolved to a name. Contents are lost on restart; the file-embedded id is
// the primary delete-match path, so that is acceptable.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.CachedWorkflow
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]models.CachedWorkflow{}}
}

// Put records a workflow under its stable id. Empty ids are ignored.
func (c *Cache) Put(id string, wf models.CachedWorkflow) {
	if id == "" || wf.Name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = wf
}

// Get returns the cached workflow for an id.
func (c *Cache) Get(id string) (models.CachedWorkflow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wf, ok := c.entries[id]
	return wf, ok
}

// Delete removes a cache entry.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len reports the number of cached workflows.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
