// Package polltest provides a manually driven scheduler for poll expiry tests.
package polltest

import (
	"sync"
	"time"

	"pollcast/internal/poll"
)

// Scheduler records scheduled expiries and fires them on demand
type Scheduler struct {
	mu     sync.Mutex
	timers []*Timer
}

// Timer is one scheduled expiry
type Timer struct {
	After   time.Duration
	fn      func()
	mu      sync.Mutex
	stopped bool
	fired   bool
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) poll.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Timer{After: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop marks the timer cancelled
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Stopped reports whether Stop was called before the timer fired
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire runs the callback even when stopped, mimicking a timer that raced
// its cancellation
func (t *Timer) Fire() {
	t.mu.Lock()
	t.fired = true
	t.mu.Unlock()
	t.fn()
}

// Timers returns every timer scheduled so far
func (s *Scheduler) Timers() []*Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Timer(nil), s.timers...)
}

// Last returns the most recently scheduled timer, or nil
func (s *Scheduler) Last() *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}
