package presence

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixil98/go-presence/internal/geo"
	"github.com/pixil98/go-presence/internal/lookup"
	"github.com/pixil98/go-presence/internal/plugins"
	"github.com/pixil98/go-presence/internal/session"
	"github.com/pixil98/go-presence/internal/storage"
)

const (
	DefaultRetryAttempts = 50
	DefaultRetryDelay    = 100 * time.Millisecond
)

// Caches groups the in-memory state the consumer reads and writes.
type Caches struct {
	Sessions      *session.Cache
	Nicknames     *lookup.Cache
	JoinAddresses *lookup.Cache
	Geo           *geo.Cache
}

// Clear empties every cache. The caches stay usable.
func (c Caches) Clear() {
	c.Sessions.Clear()
	c.Nicknames.Clear()
	c.JoinAddresses.Clear()
	c.Geo.Clear()
}

// Consumer applies domain events to the caches and hands finished work to
// the executor. Handlers never block on persistence.
type Consumer struct {
	caches   Caches
	executor *storage.Executor
	reporter Reporter

	retryAttempts int
	retryDelay    time.Duration
	now           func() int64

	serverID   string
	serverName string
	hooks      []SessionHook

	enabled atomic.Bool
	wg      sync.WaitGroup
}

type ConsumerOpt func(*Consumer)

func WithReporter(r Reporter) ConsumerOpt {
	return func(c *Consumer) {
		c.reporter = r
	}
}

// WithLeaveRetry sets how often and how far apart a leave without a cached
// session is retried.
func WithLeaveRetry(attempts int, delay time.Duration) ConsumerOpt {
	return func(c *Consumer) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithClock sets the source of epoch milliseconds used when sessions are
// ended without a leave event.
func WithClock(now func() int64) ConsumerOpt {
	return func(c *Consumer) {
		c.now = now
	}
}

// SessionHook is told about every session before it is cached.
type SessionHook interface {
	SessionStarted(context.Context, plugins.Session)
}

func WithSessionHook(h SessionHook) ConsumerOpt {
	return func(c *Consumer) {
		c.hooks = append(c.hooks, h)
	}
}

// WithDefaultServer fills in the server of events that do not name one.
func WithDefaultServer(id, name string) ConsumerOpt {
	return func(c *Consumer) {
		c.serverID = id
		c.serverName = name
	}
}

func NewConsumer(caches Caches, executor *storage.Executor, opts ...ConsumerOpt) *Consumer {
	c := &Consumer{
		caches:        caches,
		executor:      executor,
		reporter:      SlogReporter{},
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		now:           func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.enabled.Store(true)
	return c
}

func (c *Consumer) OnJoin(ctx context.Context, ev JoinEvent) {
	if !c.enabled.Load() {
		return
	}
	if ev.ServerID == "" {
		ev.ServerID = c.serverID
	}
	if ev.ServerName == "" && ev.ServerID == c.serverID {
		ev.ServerName = c.serverName
	}

	p := ev.Player
	s := session.NewActiveSession(ev.UserID, ev.ServerID, ev.Time, p.Location, p.Mode,
		session.WithNickname(p.Name),
		session.WithJoinAddress(p.OriginAddress),
		session.WithServerName(ev.ServerName),
	)
	for _, h := range c.hooks {
		h.SessionStarted(ctx, s)
	}

	if prev, ok := c.caches.Sessions.CacheSession(ev.UserID, s); ok {
		slog.InfoContext(ctx, "session interrupted", "user", ev.UserID, "server", prev.ServerID, "end", prev.End)
		c.persist(ctx, storage.StoreSession{Session: prev})
	}

	if p.Name != "" {
		c.caches.Nicknames.Set(ev.UserID, p.Name)
	}
	if p.OriginAddress != "" {
		c.caches.JoinAddresses.Set(ev.UserID, p.OriginAddress)
	}

	slog.DebugContext(ctx, "player joined", "user", ev.UserID, "server", ev.ServerID)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.populate(context.WithoutCancel(ctx), ev)
	}()
}

// populate resolves the country of a joining user and records what is known
// about them.
func (c *Consumer) populate(ctx context.Context, ev JoinEvent) {
	p := ev.Player

	txs := []storage.Transaction{
		storage.RegisterUser{
			UserID:     ev.UserID,
			PlayerName: p.Name,
			ServerID:   ev.ServerID,
			Registered: p.RegisterDate,
			LastSeen:   ev.Time,
		},
	}

	if p.Name != "" {
		txs = append(txs, storage.StoreNickname{
			UserID:   ev.UserID,
			Nickname: p.Name,
			ServerID: ev.ServerID,
			LastSeen: ev.Time,
		})
	}

	if p.OriginAddress != "" {
		txs = append(txs, storage.StoreJoinAddress{
			UserID:   ev.UserID,
			Address:  p.OriginAddress,
			LastSeen: ev.Time,
		})

		if c.caches.Geo.CanGeolocate() {
			txs = append(txs, storage.StoreGeoInfo{
				UserID:   ev.UserID,
				Country:  c.caches.Geo.Country(ctx, p.OriginAddress),
				LastSeen: ev.Time,
			})
		}
	}

	txs = append(txs,
		storage.StoreOperatorStatus{UserID: ev.UserID, ServerID: ev.ServerID, Operator: p.IsOperator},
		storage.StoreBanStatus{UserID: ev.UserID, ServerID: ev.ServerID, Banned: p.IsBanned},
	)

	c.persist(ctx, txs...)
}

func (c *Consumer) OnLeave(ctx context.Context, ev LeaveEvent) {
	if ev.ServerID == "" {
		ev.ServerID = c.serverID
	}
	c.leave(ctx, ev, 0)
}

func (c *Consumer) leave(ctx context.Context, ev LeaveEvent, attempt int) {
	if !c.enabled.Load() {
		return
	}

	fs, ok := c.caches.Sessions.EndSession(ev.UserID, ev.Time)
	if !ok {
		if attempt >= c.retryAttempts {
			slog.DebugContext(ctx, "leave without session, giving up", "user", ev.UserID, "attempts", attempt)
			return
		}
		// The join may still be on its way.
		c.wg.Add(1)
		time.AfterFunc(c.retryDelay, func() {
			defer c.wg.Done()
			c.leave(ctx, ev, attempt+1)
		})
		return
	}

	slog.DebugContext(ctx, "player left", "user", ev.UserID, "server", fs.ServerID, "duration", fs.Duration())

	c.persist(ctx,
		storage.StoreSession{Session: fs},
		storage.StoreBanStatus{UserID: ev.UserID, ServerID: ev.ServerID, Banned: ev.IsBanned},
	)
	c.caches.Nicknames.Invalidate(ev.UserID)
	c.caches.JoinAddresses.Invalidate(ev.UserID)
}

func (c *Consumer) OnStateChange(ctx context.Context, ev StateChangeEvent) {
	s, ok := c.active(ctx, ev.UserID, "state change")
	if !ok {
		return
	}
	s.ChangeState(ev.Location, ev.Mode, ev.Time)
}

func (c *Consumer) OnKill(ctx context.Context, ev KillEvent) {
	s, ok := c.active(ctx, ev.UserID, "kill")
	if !ok {
		return
	}
	if ev.Mob {
		s.AddMobKill()
		return
	}
	s.AddKill(session.Kill{
		VictimID:   ev.VictimID,
		VictimName: ev.VictimName,
		Weapon:     ev.Weapon,
		Time:       ev.Time,
	})
}

func (c *Consumer) OnDeath(ctx context.Context, ev DeathEvent) {
	s, ok := c.active(ctx, ev.UserID, "death")
	if !ok {
		return
	}
	s.AddDeath()
}

func (c *Consumer) active(ctx context.Context, userID, event string) (*session.ActiveSession, bool) {
	if !c.enabled.Load() {
		return nil, false
	}
	s, ok := c.caches.Sessions.Get(userID)
	if !ok {
		slog.DebugContext(ctx, "event for user without session", "event", event, "user", userID)
	}
	return s, ok
}

// EndAll ends every active session now and persists them. It returns the
// number of sessions ended.
func (c *Consumer) EndAll(ctx context.Context) int {
	now := c.now()
	var n int
	for _, s := range c.caches.Sessions.ActiveSessions() {
		fs, ok := c.caches.Sessions.EndSession(s.UserID(), now)
		if !ok {
			continue
		}
		c.persist(ctx, storage.StoreSession{Session: fs})
		n++
	}
	return n
}

// persist executes txs in order on a separate goroutine. Failures are
// reported and leave the caches untouched.
func (c *Consumer) persist(ctx context.Context, txs ...storage.Transaction) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, tx := range txs {
			if err := <-c.executor.Schedule(ctx, tx); err != nil {
				c.reporter.Report(ctx, SeverityError, err, "transaction", tx.Name())
			}
		}
	}()
}

// Wait blocks until pending retries and persistence started by handlers
// have finished.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) setEnabled(v bool) {
	c.enabled.Store(v)
}
