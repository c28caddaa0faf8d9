package application

import (
	"sync"
	"time"
)

// Clock supaya timestamp job dan hasil analisa gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock pakai time.Now(), selalu UTC karena semua timestamp disimpan UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ManualClock only moves when told to. Retention and pruning of finished
// jobs are tested against it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
