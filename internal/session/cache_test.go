package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestCache_CacheSession(t *testing.T) {
	tests := map[string]struct {
		firstStart  int64
		secondStart int64
		expEnd      int64
	}{
		"later join interrupts earlier session": {
			firstStart:  0,
			secondStart: 1000,
			expEnd:      1000,
		},
		"join at same instant": {
			firstStart:  500,
			secondStart: 500,
			expEnd:      500,
		},
		"out of order join never ends before start": {
			firstStart:  1000,
			secondStart: 200,
			expEnd:      1000,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewCache()
			s1 := NewActiveSession("alice", "lobby", tt.firstStart, "world", "survival")
			s2 := NewActiveSession("alice", "survival-1", tt.secondStart, "world", "survival")

			fs, ok := c.CacheSession("alice", s1)
			testutil.AssertEqual(t, "first interrupted", ok, false)
			if fs != nil {
				t.Errorf("expected no interrupted session, got %v", fs)
			}

			fs, ok = c.CacheSession("alice", s2)
			testutil.AssertEqual(t, "second interrupted", ok, true)
			testutil.AssertEqual(t, "server", fs.ServerID, "lobby")
			testutil.AssertEqual(t, "start", fs.Start, tt.firstStart)
			testutil.AssertEqual(t, "end", fs.End, tt.expEnd)
			testutil.AssertEqual(t, "total", fs.Times.Total(), tt.expEnd-tt.firstStart)

			cached, ok := c.Get("alice")
			testutil.AssertEqual(t, "cached", ok, true)
			if cached != s2 {
				t.Errorf("expected second session to be cached")
			}
			testutil.AssertEqual(t, "len", c.Len(), 1)
		})
	}
}

func TestCache_CacheSameSessionTwice(t *testing.T) {
	c := NewCache()
	s := NewActiveSession("alice", "lobby", 0, "world", "survival")

	c.CacheSession("alice", s)
	_, ok := c.CacheSession("alice", s)

	testutil.AssertEqual(t, "interrupted", ok, false)
	testutil.AssertEqual(t, "len", c.Len(), 1)
}

func TestCache_EndSession(t *testing.T) {
	tests := map[string]struct {
		cached      bool
		at          int64
		expOk       bool
		expStillSet bool
	}{
		"no session": {
			cached: false,
			at:     5000,
			expOk:  false,
		},
		"end before start": {
			cached:      true,
			at:          999,
			expOk:       false,
			expStillSet: true,
		},
		"end at start": {
			cached: true,
			at:     1000,
			expOk:  true,
		},
		"end after start": {
			cached: true,
			at:     2500,
			expOk:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewCache()
			if tt.cached {
				c.CacheSession("alice", NewActiveSession("alice", "lobby", 1000, "world", "survival"))
			}

			fs, ok := c.EndSession("alice", tt.at)

			testutil.AssertEqual(t, "ok", ok, tt.expOk)
			if tt.expOk {
				testutil.AssertEqual(t, "end", fs.End, tt.at)
				testutil.AssertEqual(t, "total", fs.Times.Total(), tt.at-1000)
			}
			_, cached := c.Get("alice")
			testutil.AssertEqual(t, "still cached", cached, tt.expStillSet)
		})
	}
}

func TestCache_EndToEnd(t *testing.T) {
	c := NewCache()
	c.CacheSession("alice", NewActiveSession("alice", "lobby", 0, "A", "X"))

	s, ok := c.Get("alice")
	if !ok {
		t.Fatal("expected cached session")
	}
	s.ChangeState("A", "Y", 1000)

	fs, ok := c.EndSession("alice", 1500)
	if !ok {
		t.Fatal("expected finished session")
	}

	testutil.AssertEqual(t, "duration", fs.Duration(), int64(1500))
	testutil.AssertEqual(t, "total", fs.Times.Total(), int64(1500))
	testutil.AssertEqual(t, "A/X", fs.Times.Pair("A", "X"), int64(1000))
	testutil.AssertEqual(t, "A/Y", fs.Times.Pair("A", "Y"), int64(500))
	testutil.AssertEqual(t, "len", c.Len(), 0)
}

func TestCache_RefreshAndSnapshot(t *testing.T) {
	c := NewCache()
	for i := range 5 {
		id := fmt.Sprintf("user-%d", i)
		c.CacheSession(id, NewActiveSession(id, "lobby", 0, "world", "survival"))
	}

	c.Refresh(700)

	sessions := c.ActiveSessions()
	testutil.AssertEqual(t, "snapshot size", len(sessions), 5)
	for _, s := range sessions {
		testutil.AssertEqual(t, s.UserID()+" committed", s.Times(700).Total(), int64(700))
	}

	c.Clear()
	testutil.AssertEqual(t, "len after clear", c.Len(), 0)
	testutil.AssertEqual(t, "old snapshot untouched", len(sessions), 5)
}

func TestCache_RefreshThenEarlierEvents(t *testing.T) {
	tests := map[string]struct {
		change   bool
		end      int64
		expPairs map[[2]string]int64
	}{
		"leave stamped before refresh": {
			end: 900,
			expPairs: map[[2]string]int64{
				{"A", "X"}: 900,
			},
		},
		"state change stamped before refresh": {
			change: true,
			end:    1500,
			expPairs: map[[2]string]int64{
				{"A", "X"}: 990,
				{"A", "Y"}: 510,
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewCache()
			s := NewActiveSession("alice", "lobby", 0, "A", "X")
			c.CacheSession("alice", s)

			c.Refresh(1000)
			if tt.change {
				s.ChangeState("A", "Y", 990)
			}

			fs, ok := c.EndSession("alice", tt.end)
			if !ok {
				t.Fatal("expected finished session")
			}

			testutil.AssertEqual(t, "total", fs.Times.Total(), fs.Duration())
			for pair, exp := range tt.expPairs {
				testutil.AssertEqual(t, pair[0]+"/"+pair[1], fs.Times.Pair(pair[0], pair[1]), exp)
			}
		})
	}
}

func TestCache_RefreshThenEarlierJoin(t *testing.T) {
	c := NewCache()
	c.CacheSession("alice", NewActiveSession("alice", "lobby", 0, "A", "X"))
	c.Refresh(1000)

	prev, ok := c.CacheSession("alice", NewActiveSession("alice", "arena", 800, "A", "X"))
	if !ok {
		t.Fatal("expected interrupted session")
	}

	testutil.AssertEqual(t, "end", prev.End, int64(800))
	testutil.AssertEqual(t, "total", prev.Times.Total(), int64(800))
}

func TestCache_ConcurrentUsers(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			c.CacheSession(id, NewActiveSession(id, "lobby", 0, "world", "survival"))
			if i%2 == 0 {
				c.EndSession(id, 100)
			}
		}(i)
	}
	wg.Wait()

	testutil.AssertEqual(t, "len", c.Len(), 32)
}

func TestCache_ConcurrentSameUser(t *testing.T) {
	c := NewCache()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		finished int
	)
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := c.CacheSession("alice", NewActiveSession("alice", "lobby", int64(i), "world", "survival"))
			if ok {
				mu.Lock()
				finished++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if _, ok := c.EndSession("alice", 1000); ok {
		finished++
	}

	// Every session is finished exactly once: 49 interrupted, 1 ended.
	testutil.AssertEqual(t, "finished", finished, 50)
	testutil.AssertEqual(t, "len", c.Len(), 0)
}
