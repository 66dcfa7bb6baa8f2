package playtime

import "maps"

// Times accumulates milliseconds spent in each (location, mode) pair of a
// single session. It is not safe for concurrent use; the owning session
// serialises access.
type Times struct {
	buckets  map[string]map[string]int64
	location string
	mode     string
	last     int64
	final    bool

	// committed is where the current pair has been booked up to. It never
	// precedes last.
	committed int64
}

// New starts accounting at start with location/mode as the current pair.
func New(location, mode string, start int64) *Times {
	return &Times{
		buckets:   map[string]map[string]int64{},
		location:  location,
		mode:      mode,
		last:      start,
		committed: start,
	}
}

// Current returns the pair time is currently accruing to.
func (t *Times) Current() (location, mode string) {
	return t.location, t.mode
}

// LastChange returns the timestamp of the most recent transition.
func (t *Times) LastChange() int64 {
	return t.last
}

// Finalized reports whether Finalize has been called.
func (t *Times) Finalized() bool {
	return t.final
}

// Observe closes out the time since the last transition into the previous
// pair and makes (location, mode) current. Stale or duplicate timestamps
// (at <= last transition) are ignored. A transition stamped before the last
// Commit takes back the time committed past it.
func (t *Times) Observe(location, mode string, at int64) {
	if t.final || at <= t.last {
		return
	}

	t.settle(at)
	t.location = location
	t.mode = mode
	t.last = at
}

// Commit folds the pending duration into the current pair without changing
// it. It does not move the last transition, so later events stamped before
// at are still accounted for.
func (t *Times) Commit(at int64) {
	if t.final || at <= t.committed {
		return
	}
	t.settle(at)
}

// Finalize flushes the trailing duration and makes Times read-only. An end
// before the last transition is treated as ending at that transition.
func (t *Times) Finalize(at int64) {
	if t.final {
		return
	}
	t.settle(max(at, t.last))
	t.final = true
}

// settle books the current pair up to at, which may be before committed.
func (t *Times) settle(at int64) {
	t.add(t.location, t.mode, at-t.committed)
	t.committed = at
}

// Pending returns a finalized copy that includes the time accrued since the
// last transition. The receiver is left untouched.
func (t *Times) Pending(now int64) *Times {
	c := t.Clone()
	c.Finalize(now)
	return c
}

// Clone returns a deep copy.
func (t *Times) Clone() *Times {
	c := &Times{
		buckets:   make(map[string]map[string]int64, len(t.buckets)),
		location:  t.location,
		mode:      t.mode,
		last:      t.last,
		committed: t.committed,
		final:     t.final,
	}
	for loc, modes := range t.buckets {
		c.buckets[loc] = maps.Clone(modes)
	}
	return c
}

// Pair returns the time spent in mode while in location.
func (t *Times) Pair(location, mode string) int64 {
	return t.buckets[location][mode]
}

// Location returns the time spent in location across all modes.
func (t *Times) Location(location string) int64 {
	var total int64
	for _, ms := range t.buckets[location] {
		total += ms
	}
	return total
}

// Mode returns the time spent in mode across all locations.
func (t *Times) Mode(mode string) int64 {
	var total int64
	for _, modes := range t.buckets {
		total += modes[mode]
	}
	return total
}

// Total returns the sum of all buckets.
func (t *Times) Total() int64 {
	var total int64
	for _, modes := range t.buckets {
		for _, ms := range modes {
			total += ms
		}
	}
	return total
}

// Locations returns a copy of the accumulated buckets.
func (t *Times) Locations() map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(t.buckets))
	for loc, modes := range t.buckets {
		out[loc] = maps.Clone(modes)
	}
	return out
}

// RenameLocation moves everything accumulated under from to to.
func (t *Times) RenameLocation(from, to string) {
	if from == to {
		return
	}
	if modes, ok := t.buckets[from]; ok {
		for mode, ms := range modes {
			t.add(to, mode, ms)
		}
		delete(t.buckets, from)
	}
	if t.location == from {
		t.location = to
	}
}

// RenameMode moves everything accumulated under mode from to mode to, in
// every location.
func (t *Times) RenameMode(from, to string) {
	if from == to {
		return
	}
	for loc, modes := range t.buckets {
		ms, ok := modes[from]
		if !ok {
			continue
		}
		delete(modes, from)
		t.add(loc, to, ms)
	}
	if t.mode == from {
		t.mode = to
	}
}

func (t *Times) add(location, mode string, ms int64) {
	modes, ok := t.buckets[location]
	if !ok {
		modes = map[string]int64{}
		t.buckets[location] = modes
	}
	modes[mode] += ms
}
