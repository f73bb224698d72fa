package channel

import (
	"sync"
	"time"
)

// Gate enforces a minimum interval between submissions. Early arrivals
// are rejected, never queued: freshness over completeness.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewGate creates a Gate allowing at most maxPerSecond events per second.
func NewGate(maxPerSecond float64) *Gate {
	if maxPerSecond <= 0 {
		maxPerSecond = 1
	}
	return &Gate{
		interval: time.Duration(float64(time.Second) / maxPerSecond),
	}
}

// Allow returns true if enough time has passed since the last allowed
// event. Uses the monotonic clock carried by time.Time.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}
