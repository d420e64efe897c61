package client

import (
	"sync"
	"time"
)

// Throttle lets one call through per cool-down window. It guards against
// accidental repeated input only.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{window: window, now: time.Now}
}

// Allow reports whether a call may proceed and starts a new window if so.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		return false
	}
	t.last = now
	return true
}
