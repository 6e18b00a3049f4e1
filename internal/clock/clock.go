// Package clock provides the time source and the named, cancellable timer
// handles every component uses for its scheduling concerns.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending single-shot callback.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Clock is a source of time and single-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Handle owns exactly one timer for one named concern. Arming a handle
// always cancels whatever it held before, so a handle never has two timers
// pending at once.
type Handle struct {
	mu    sync.Mutex
	name  string
	clock Clock
	timer Timer
	gen   uint64
}

// NewHandle creates an unarmed handle.
func NewHandle(c Clock, name string) *Handle {
	return &Handle{name: name, clock: c}
}

// Name returns the concern this handle schedules.
func (h *Handle) Name() string { return h.name }

// Arm cancels any pending timer and schedules f after d.
func (h *Handle) Arm(d time.Duration, f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
	gen := h.gen
	h.timer = h.clock.AfterFunc(d, func() {
		h.mu.Lock()
		if h.gen != gen {
			h.mu.Unlock()
			return
		}
		h.timer = nil
		h.mu.Unlock()
		f()
	})
}

// Cancel stops the pending timer, if any. It reports whether one was armed.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer == nil {
		return false
	}
	h.timer.Stop()
	h.timer = nil
	h.gen++
	return true
}

// IsArmed reports whether a timer is pending.
func (h *Handle) IsArmed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timer != nil
}
