package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces a burst of triggers into one callback after a
// quiet period. Each Trigger restarts the timer; the callback of the
// last Trigger wins.
type Debouncer struct {
	duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period. A zero
// or negative duration makes Trigger synchronous.
func NewDebouncer(d time.Duration) *Debouncer {
	return &Debouncer{duration: d}
}

// Trigger schedules fn after the quiet period, replacing any pending
// callback.
func (d *Debouncer) Trigger(fn func()) {
	if d.duration <= 0 {
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
