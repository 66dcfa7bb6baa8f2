package driver

import (
	"context"
	"time"
)

// Refresher is a cache that folds pending play time into its sessions.
type Refresher interface {
	Refresh(now int64)
}

// SessionRefresher commits pending play time of every active session on each
// tick so readers see current totals.
type SessionRefresher struct {
	cache Refresher
	now   func() int64
}

func NewSessionRefresher(cache Refresher) *SessionRefresher {
	return &SessionRefresher{
		cache: cache,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func (r *SessionRefresher) Tick(ctx context.Context) error {
	r.cache.Refresh(r.now())
	return nil
}
