package geo

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// GeoLite2Resolver reads countries from a local MaxMind database. It only
// opens the database once the operator has accepted the license.
type GeoLite2Resolver struct {
	path     string
	accepted bool

	mu sync.RWMutex
	db *geoip2.Reader
}

func NewGeoLite2Resolver(path string, accepted bool) *GeoLite2Resolver {
	return &GeoLite2Resolver{path: path, accepted: accepted}
}

func (r *GeoLite2Resolver) Name() string {
	return "geolite2"
}

func (r *GeoLite2Resolver) Prepare(ctx context.Context) error {
	if !r.accepted {
		return ErrNoConsent
	}
	if r.path == "" {
		return fmt.Errorf("no database path configured")
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", r.path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		_ = r.db.Close()
	}
	r.db = db
	return nil
}

func (r *GeoLite2Resolver) Resolve(ctx context.Context, addr netip.Addr) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return "", fmt.Errorf("database not open")
	}

	rec, err := r.db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", addr, err)
	}
	name := rec.Country.Names["en"]
	if name == "" {
		return "", ErrUnresolved
	}
	return name, nil
}

func (r *GeoLite2Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
