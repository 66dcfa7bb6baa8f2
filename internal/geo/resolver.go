package geo

import (
	"context"
	"errors"
	"net/netip"
)

var (
	ErrNoConsent  = errors.New("geolocation database license not accepted")
	ErrUnresolved = errors.New("address could not be resolved")
)

// Resolver maps a public address to a country name.
type Resolver interface {
	Name() string
	// Prepare readies the resolver. A resolver whose Prepare fails is never
	// asked to resolve.
	Prepare(ctx context.Context) error
	Resolve(ctx context.Context, addr netip.Addr) (string, error)
}
