package presence

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-presence/internal/geo"
	"github.com/pixil98/go-presence/internal/lookup"
	"github.com/pixil98/go-presence/internal/session"
	"github.com/pixil98/go-presence/internal/storage"
)

// Subsystem owns the presence caches and the consumer feeding them. Caches
// are allocated once and only cleared on Disable, so the subsystem can be
// enabled again.
type Subsystem struct {
	caches   Caches
	executor *storage.Executor
	consumer *Consumer

	mu      sync.Mutex
	enabled bool
}

func NewSubsystem(executor *storage.Executor, geoCache *geo.Cache, opts ...ConsumerOpt) *Subsystem {
	db := executor.Database()
	caches := Caches{
		Sessions:      session.NewCache(),
		Nicknames:     lookup.NewNicknameCache(db),
		JoinAddresses: lookup.NewJoinAddressCache(db),
		Geo:           geoCache,
	}

	c := NewConsumer(caches, executor, opts...)
	c.setEnabled(false)

	return &Subsystem{
		caches:   caches,
		executor: executor,
		consumer: c,
	}
}

func (s *Subsystem) Caches() Caches {
	return s.caches
}

func (s *Subsystem) Consumer() *Consumer {
	return s.consumer
}

// Enable starts accepting events and prepares geolocation.
func (s *Subsystem) Enable(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return
	}

	s.caches.Geo.Enable(ctx)
	s.consumer.setEnabled(true)
	s.enabled = true
	slog.InfoContext(ctx, "presence enabled", "geolocation", s.caches.Geo.CanGeolocate())
}

// Disable stops accepting events, ends and persists active sessions and
// clears every cache. Retries still pending become no-ops.
func (s *Subsystem) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil
	}

	s.consumer.setEnabled(false)
	ended := s.consumer.EndAll(ctx)
	s.caches.Clear()
	err := s.caches.Geo.Close()
	s.enabled = false
	slog.InfoContext(ctx, "presence disabled", "sessions_ended", ended)
	return err
}

// Start enables the subsystem until ctx is done, then disables it, waits for
// outstanding writes and closes the database.
func (s *Subsystem) Start(ctx context.Context) error {
	s.Enable(ctx)
	<-ctx.Done()

	el := errors.NewErrorList()
	el.Add(s.Disable(context.WithoutCancel(ctx)))
	s.consumer.Wait()
	s.executor.Wait()
	el.Add(s.executor.Database().Close())
	return el.Err()
}
