package session

import (
	"hash/maphash"
	"sync"
)

const shardCount = 32

// Cache is the registry of in-progress sessions, at most one per user.
// Users are spread over independently locked shards so operations for
// different users do not contend on a single lock.
type Cache struct {
	seed   maphash.Seed
	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*ActiveSession
}

func NewCache() *Cache {
	c := &Cache{seed: maphash.MakeSeed()}
	for i := range c.shards {
		c.shards[i].sessions = map[string]*ActiveSession{}
	}
	return c
}

func (c *Cache) shard(userID string) *shard {
	return &c.shards[maphash.String(c.seed, userID)%shardCount]
}

// CacheSession makes s the active session for userID. If another session was
// active it is finished at s's start time and returned.
func (c *Cache) CacheSession(userID string, s *ActiveSession) (*FinishedSession, bool) {
	sh := c.shard(userID)
	sh.mu.Lock()
	prev, ok := sh.sessions[userID]
	sh.sessions[userID] = s
	sh.mu.Unlock()

	if !ok || prev == s {
		return nil, false
	}

	// A join delivered out of order may start before the session it replaces.
	return prev.finish(max(s.Start(), prev.Start()))
}

// EndSession removes and finishes the session for userID. Nothing happens if
// there is no session or at precedes its start.
func (c *Cache) EndSession(userID string, at int64) (*FinishedSession, bool) {
	sh := c.shard(userID)
	sh.mu.Lock()
	s, ok := sh.sessions[userID]
	if !ok || at < s.Start() {
		sh.mu.Unlock()
		return nil, false
	}
	delete(sh.sessions, userID)
	sh.mu.Unlock()

	return s.finish(at)
}

// Get returns the active session for userID.
func (c *Cache) Get(userID string) (*ActiveSession, bool) {
	sh := c.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	return s, ok
}

// ActiveSessions returns a snapshot of all active sessions.
func (c *Cache) ActiveSessions() []*ActiveSession {
	var out []*ActiveSession
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for _, s := range sh.sessions {
			out = append(out, s)
		}
		sh.mu.Unlock()
	}
	return out
}

// Refresh commits pending play time of every active session up to now.
// Events stamped before now that arrive later are still booked correctly.
func (c *Cache) Refresh(now int64) {
	for _, s := range c.ActiveSessions() {
		s.Commit(now)
	}
}

func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// Clear drops every active session without finishing them.
func (c *Cache) Clear() {
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		clear(sh.sessions)
		sh.mu.Unlock()
	}
}
