package nation

import (
	"context"
	"sync"

	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/lib/lru_cache"
)

// Store is the full set of nation record operations.
type Store interface {
	Get(ctx context.Context, id string) (*model.Nation, error)
	Exists(ctx context.Context, id string) (bool, error)
	Save(ctx context.Context, nation model.Nation) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]model.Nation, error)
}

// CachedStore remembers recent Exists answers in front of another store.
// It assumes it is the only writer of the wrapped store.
type CachedStore struct {
	Store

	mu     sync.Mutex
	exists *lru_cache.LRU[string, bool]
}

func NewCachedStore(store Store, capacity int) *CachedStore {
	return &CachedStore{
		Store:  store,
		exists: lru_cache.NewLRU[string, bool](capacity),
	}
}

func (c *CachedStore) Exists(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	ok, hit := c.exists.Get(id)
	c.mu.Unlock()
	if hit {
		return ok, nil
	}

	ok, err := c.Store.Exists(ctx, id)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.exists.Put(id, ok)
	c.mu.Unlock()

	return ok, nil
}

func (c *CachedStore) Save(ctx context.Context, nation model.Nation) error {
	if err := c.Store.Save(ctx, nation); err != nil {
		return err
	}

	c.mu.Lock()
	c.exists.Put(nation.ID, true)
	c.mu.Unlock()

	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	if err := c.Store.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	c.exists.Remove(id)
	c.mu.Unlock()

	return nil
}
