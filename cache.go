package jerseyfolio

import (
	"sync"
	"time"

	"github.com/eringen/jerseyfolio/catalog"
)

// Snapshot is one consistent read of the three catalog documents.
type Snapshot struct {
	Jerseys    []catalog.Jersey
	Categories []catalog.Category
	Tags       []catalog.Tag
}

// CatalogCache is an in-memory copy of the catalog with a TTL. The HTML
// renderer reads through it; every write path invalidates it.
type CatalogCache struct {
	mu      sync.RWMutex
	snap    *Snapshot
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewCatalogCache creates a CatalogCache backed by the given Store.
func NewCatalogCache(s *Store, ttl time.Duration) *CatalogCache {
	return &CatalogCache{store: s, ttl: ttl}
}

func (c *CatalogCache) valid() bool {
	return c.snap != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *CatalogCache) load() error {
	if c.valid() {
		return nil
	}
	jerseys, err := c.store.Jerseys()
	if err != nil {
		return err
	}
	cats, err := c.store.Categories()
	if err != nil {
		return err
	}
	tags, err := c.store.Tags()
	if err != nil {
		return err
	}
	c.snap = &Snapshot{Jerseys: jerseys, Categories: cats, Tags: tags}
	c.fetched = time.Now()
	return nil
}

// Snapshot returns the cached catalog, reloading it when stale. Callers
// must not modify the returned slices.
func (c *CatalogCache) Snapshot() (Snapshot, error) {
	c.mu.RLock()
	if c.valid() {
		snap := *c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return Snapshot{}, err
	}
	return *c.snap, nil
}

// Jersey returns the jersey with the given id, active or not.
func (c *CatalogCache) Jersey(id string) (catalog.Jersey, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return catalog.Jersey{}, err
	}
	i := catalog.Find(snap.Jerseys, id)
	if i < 0 {
		return catalog.Jersey{}, catalog.ErrNotFound
	}
	return snap.Jerseys[i], nil
}
