package sqlite

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

// CachedItems wraps an ItemRepository with a TTL'd id lookup cache and a
// table-scoped write lock with a bounded wait. Every write invalidates the
// affected keys synchronously; the TTL covers writers outside this process.
type CachedItems struct {
	inner    port.ItemRepository
	byID     *expirable.LRU[string, *domain.Item]
	hashToID *expirable.LRU[string, string]
	lock     chan struct{}
	lockWait time.Duration
}

var _ port.ItemRepository = (*CachedItems)(nil)

// NewCachedItems builds the caching layer around inner
func NewCachedItems(inner port.ItemRepository, size int, ttl, lockWait time.Duration) *CachedItems {
	if size <= 0 {
		size = 2048
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if lockWait <= 0 {
		lockWait = 30 * time.Second
	}
	return &CachedItems{
		inner:    inner,
		byID:     expirable.NewLRU[string, *domain.Item](size, nil, ttl),
		hashToID: expirable.NewLRU[string, string](size, nil, ttl),
		lock:     make(chan struct{}, 1),
		lockWait: lockWait,
	}
}

// acquire takes the table lock or fails with ErrLockTimeout after the bound.
// Blocking forever here would wedge a sweep behind a stuck writer.
func (c *CachedItems) acquire() error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-time.After(c.lockWait):
		return domain.ErrLockTimeout
	}
}

func (c *CachedItems) release() {
	<-c.lock
}

// Get retrieves an item, serving repeated lookups from the cache
func (c *CachedItems) Get(id string) (*domain.Item, error) {
	if item, ok := c.byID.Get(id); ok {
		clone := *item
		return &clone, nil
	}
	item, err := c.inner.Get(id)
	if err != nil || item == nil {
		return item, err
	}
	c.store(item)
	clone := *item
	return &clone, nil
}

// FindByHash retrieves an item by content hash
func (c *CachedItems) FindByHash(hash string) (*domain.Item, error) {
	if id, ok := c.hashToID.Get(hash); ok {
		if item, ok := c.byID.Get(id); ok {
			clone := *item
			return &clone, nil
		}
	}
	item, err := c.inner.FindByHash(hash)
	if err != nil || item == nil {
		return item, err
	}
	c.store(item)
	clone := *item
	return &clone, nil
}

// List passes through; ranged scans are not worth caching
func (c *CachedItems) List(filter port.ItemFilter) ([]*domain.Item, int, error) {
	return c.inner.List(filter)
}

// ListIDs passes through to snapshot current table state
func (c *CachedItems) ListIDs() (map[string]*domain.Item, error) {
	return c.inner.ListIDs()
}

// Upsert writes through under the table lock and refreshes the cache
func (c *CachedItems) Upsert(item *domain.Item) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.invalidate(item)
	if err := c.inner.Upsert(item); err != nil {
		return err
	}
	c.store(item)
	return nil
}

// Archive relocates the row and invalidates the cached entry
func (c *CachedItems) Archive(item *domain.Item) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.invalidate(item)
	return c.inner.Archive(item)
}

// Restore relocates the row back and invalidates the cached entry
func (c *CachedItems) Restore(item *domain.Item) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.invalidate(item)
	return c.inner.Restore(item)
}

// Delete removes the row and drops it from the cache
func (c *CachedItems) Delete(id string) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if item, ok := c.byID.Get(id); ok {
		c.invalidate(item)
	}
	c.byID.Remove(id)
	return c.inner.Delete(id)
}

func (c *CachedItems) store(item *domain.Item) {
	clone := *item
	c.byID.Add(item.ID, &clone)
	if item.ContentHash != "" {
		c.hashToID.Add(item.ContentHash, item.ID)
	}
}

func (c *CachedItems) invalidate(item *domain.Item) {
	c.byID.Remove(item.ID)
	if item.ContentHash != "" {
		c.hashToID.Remove(item.ContentHash)
	}
}
