package domain

import (
	"sync"
	"time"
)

// SenderClock stamps envelopes with instants that never go backwards,
// regardless of wall-clock adjustments. Timestamps are monotone
// non-decreasing per sender only; no cross-sender ordering is implied.
//
// The zero value is ready to use and safe for concurrent use.
type SenderClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *SenderClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !now.After(c.last) {
		now = c.last.Add(time.Nanosecond)
	}
	c.last = now
	return now
}
