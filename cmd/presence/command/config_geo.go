package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-presence/internal/geo"
)

type GeolocationConfig struct {
	Enabled            bool   `json:"enabled"`
	AcceptGeoLite2EULA bool   `json:"accept_geolite2_eula"`
	DatabasePath       string `json:"database_path"`
	HTTPURL            string `json:"http_url"`
	RequestsPerMinute  int    `json:"requests_per_minute"`
	CacheTTL           string `json:"cache_ttl"`
}

func (c *GeolocationConfig) validate() error {
	el := errors.NewErrorList()

	if c.CacheTTL != "" {
		d, err := time.ParseDuration(c.CacheTTL)
		if err != nil {
			el.Add(fmt.Errorf("geolocation: parsing cache_ttl: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("geolocation: cache_ttl must be positive"))
		}
	}
	if c.RequestsPerMinute < 0 {
		el.Add(fmt.Errorf("geolocation: requests_per_minute must not be negative"))
	}

	return el.Err()
}

// buildGeoCache returns a cache with no resolvers when geolocation is
// disabled, so every lookup yields a sentinel.
func (c *GeolocationConfig) buildGeoCache() (*geo.Cache, error) {
	var opts []geo.CacheOpt
	if c.CacheTTL != "" {
		d, err := time.ParseDuration(c.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("parsing cache_ttl: %w", err)
		}
		opts = append(opts, geo.WithTTL(d))
	}

	var resolvers []geo.Resolver
	if c.Enabled {
		resolvers = append(resolvers, geo.NewGeoLite2Resolver(c.DatabasePath, c.AcceptGeoLite2EULA))

		if c.HTTPURL != "" {
			var httpOpts []geo.HTTPResolverOpt
			if c.RequestsPerMinute > 0 {
				httpOpts = append(httpOpts, geo.WithRateLimit(c.RequestsPerMinute))
			}
			resolvers = append(resolvers, geo.NewHTTPResolver(c.HTTPURL, httpOpts...))
		}
	}

	return geo.NewCache(resolvers, opts...), nil
}
