package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pixil98/go-presence/internal/storage"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for a key from the backing store. It returns
// storage.ErrNotFound when there is nothing to cache.
type Loader func(ctx context.Context, key string) (string, error)

// Cache is a read-through cache of last-known strings per user. Entries do
// not expire; they are invalidated explicitly when the user leaves.
type Cache struct {
	name    string
	load    Loader
	entries *ttlcache.Cache[string, string]
	group   singleflight.Group

	// mu orders stores from loads against Set, Invalidate and Clear. gen is
	// bumped by every invalidation so a load that raced one is not stored.
	mu  sync.Mutex
	gen uint64
}

type loaded struct {
	value string
	found bool
}

func NewCache(name string, load Loader) *Cache {
	return &Cache{
		name: name,
		load: load,
		entries: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

// NewNicknameCache caches display names stored in db.
func NewNicknameCache(db storage.Database) *Cache {
	return NewCache("nickname", db.Nickname)
}

// NewJoinAddressCache caches last join addresses stored in db.
func NewJoinAddressCache(db storage.Database) *Cache {
	return NewCache("join address", db.JoinAddress)
}

// Get returns the cached value for key, loading it once on a miss.
// Concurrent misses for the same key share one load. found is false when
// neither the cache nor the store has a value.
func (c *Cache) Get(ctx context.Context, key string) (value string, found bool, err error) {
	var res loaded
	loader := ttlcache.LoaderFunc[string, string](
		func(_ *ttlcache.Cache[string, string], _ string) *ttlcache.Item[string, string] {
			res, err = c.loadOnce(ctx, key)
			// loadOnce stores the value itself when it is still current.
			return nil
		},
	)

	if item := c.entries.Get(key, ttlcache.WithLoader[string, string](loader)); item != nil {
		return item.Value(), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return res.value, res.found, nil
}

func (c *Cache) loadOnce(ctx context.Context, key string) (loaded, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		value, err := c.load(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return loaded{}, nil
		}
		if err != nil {
			return loaded{}, fmt.Errorf("loading %s of %s: %w", c.name, key, err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// A value set while loading is newer than what the store returned.
		if item := c.entries.Get(key); item != nil {
			return loaded{value: item.Value(), found: true}, nil
		}
		if c.gen == gen {
			c.entries.Set(key, value, ttlcache.NoTTL)
		}
		return loaded{value: value, found: true}, nil
	})
	if err != nil {
		return loaded{}, err
	}
	return v.(loaded), nil
}

// Set records a value observed directly, e.g. from a join event.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(key, value, ttlcache.NoTTL)
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries.Delete(key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries.DeleteAll()
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
