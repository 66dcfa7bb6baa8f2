package geo

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

const (
	LocalMachine = "Local Machine"
	LocalNetwork = "Local Network"
	Unknown      = "Unknown"

	DefaultTTL = 2 * time.Minute
)

// Cache resolves addresses to country names through the first resolver that
// could be prepared. Results are kept until they have not been read for the
// configured TTL.
type Cache struct {
	resolvers []Resolver
	ttl       time.Duration

	mu      sync.RWMutex
	active  Resolver
	entries *ttlcache.Cache[string, string]
	running bool

	group singleflight.Group
}

type CacheOpt func(*Cache)

func WithTTL(d time.Duration) CacheOpt {
	return func(c *Cache) {
		c.ttl = d
	}
}

// NewCache creates a cache trying resolvers in order when enabled.
func NewCache(resolvers []Resolver, opts ...CacheOpt) *Cache {
	c := &Cache{
		resolvers: resolvers,
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = ttlcache.New[string, string](ttlcache.WithTTL[string, string](c.ttl))
	return c
}

// Enable prepares resolvers in order and keeps the first that succeeds. It
// reports whether geolocation is available.
func (c *Cache) Enable(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		go c.entries.Start()
		c.running = true
	}

	if c.active != nil {
		return true
	}

	for _, r := range c.resolvers {
		if err := r.Prepare(ctx); err != nil {
			slog.WarnContext(ctx, "geolocation resolver unavailable", "resolver", r.Name(), "error", err)
			continue
		}
		c.active = r
		slog.InfoContext(ctx, "geolocation enabled", "resolver", r.Name())
		return true
	}

	slog.WarnContext(ctx, "geolocation disabled, no resolver could be prepared")
	return false
}

// CanGeolocate reports whether a resolver is active.
func (c *Cache) CanGeolocate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active != nil
}

// Country returns the country of address. Local addresses map to
// LocalMachine or LocalNetwork without a lookup; anything that cannot be
// resolved maps to Unknown.
func (c *Cache) Country(ctx context.Context, address string) string {
	addr, ok := parseAddress(address)
	if !ok {
		return Unknown
	}
	switch {
	case addr.IsLoopback():
		return LocalMachine
	case addr.IsPrivate(), addr.IsLinkLocalUnicast(), addr.IsUnspecified():
		return LocalNetwork
	}

	key := addr.String()
	if item := c.entries.Get(key); item != nil {
		return item.Value()
	}

	c.mu.RLock()
	r := c.active
	c.mu.RUnlock()
	if r == nil {
		return Unknown
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if item := c.entries.Get(key); item != nil {
			return item.Value(), nil
		}

		country, err := r.Resolve(ctx, addr)
		if err != nil || country == "" {
			slog.DebugContext(ctx, "geolocation lookup failed", "resolver", r.Name(), "address", key, "error", err)
			country = Unknown
		}
		c.entries.Set(key, country, ttlcache.DefaultTTL)
		return country, nil
	})
	return v.(string)
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Clear drops every cached address. The active resolver is kept.
func (c *Cache) Clear() {
	c.entries.DeleteAll()
}

// Close stops expiry, drops cached entries and releases the active resolver.
// Enable may be called again afterwards.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.DeleteAll()
	if c.running {
		c.entries.Stop()
		c.running = false
	}

	var err error
	if closer, ok := c.active.(io.Closer); ok {
		err = closer.Close()
	}
	c.active = nil
	return err
}

// parseAddress accepts bare addresses, host:port pairs and the "/1.2.3.4"
// form some platforms report.
func parseAddress(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "/"))
	if s == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
