package overlay

import (
	"sync"
	"time"
)

// idleWatchdog fires a callback once per interval so the peer can judge
// read and write liveness. At most one timer is pending at a time: arm
// replaces any pending timer instead of stacking a second one, and stop
// cancels whatever is pending.
type idleWatchdog struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newIdleWatchdog(interval time.Duration) *idleWatchdog {
	return &idleWatchdog{interval: interval}
}

// arm schedules tick to run after one interval, replacing any pending timer.
// No-op once the watchdog has been stopped.
func (w *idleWatchdog) arm(tick func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, tick)
}

// stop cancels the pending timer and prevents any further arming.
func (w *idleWatchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
