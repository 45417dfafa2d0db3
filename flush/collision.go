package flush

import "sync"

// collisionTracker guarantees a strictly increasing timestamp_us per entry,
// implementing the Open Question 2 decision: the monotonic suffix is folded
// directly into the timestamp by scaling to a finer-grained unit
// (base_us * 1000 + suffix) rather than carried as a side label, so the
// natural (entry, timestamp_us) key stays backend-agnostic.
type collisionTracker struct {
	mu   sync.Mutex
	last map[string]int64
}

func newCollisionTracker() *collisionTracker {
	return &collisionTracker{last: make(map[string]int64)}
}

// next returns a timestamp_us value for entry that is strictly greater than
// any previously returned for that entry, preferring baseUs*1000 (preserving
// genuine microsecond resolution) and falling back to the smallest
// collision-free increment above it.
func (c *collisionTracker) next(entry string, baseUs int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := baseUs * 1000
	if prev, ok := c.last[entry]; ok && candidate <= prev {
		candidate = prev + 1
	}
	c.last[entry] = candidate
	return candidate
}
