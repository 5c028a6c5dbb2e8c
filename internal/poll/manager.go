package poll

import (
	"sync"
	"time"

	"pollcast/pkg/types"
)

// ExpireFunc is invoked from the timer goroutine when a poll's duration elapses
type ExpireFunc func(pollID int64)

// Manager owns the single current poll
// ARCHITECTURAL DISCOVERY: The active flag is the only end guard; timers are
// cancelled as cleanup but a late timer still lands on a no-op End
type Manager struct {
	mu        sync.RWMutex
	current   *types.Poll
	timer     Timer
	lastID    int64
	scheduler Scheduler
	onExpire  ExpireFunc
	now       func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithScheduler replaces the wall-clock scheduler
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		m.scheduler = s
	}
}

// WithClock replaces time.Now for ids and timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager with no poll.
// A nil onExpire ends the poll directly when its timer fires.
func NewManager(onExpire ExpireFunc, opts ...Option) *Manager {
	m := &Manager{
		scheduler: clockScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if onExpire == nil {
		onExpire = func(pollID int64) { m.End(pollID) }
	}
	m.onExpire = onExpire
	return m
}

// Create starts a fresh active poll, superseding any prior poll without ending it.
// durationSeconds <= 0 means the poll only ends on a manual command; values
// above types.MaxDurationSeconds are capped.
func (m *Manager) Create(question string, options []string, durationSeconds int) *types.Poll {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	if durationSeconds < 0 {
		durationSeconds = 0
	}
	if durationSeconds > types.MaxDurationSeconds {
		durationSeconds = types.MaxDurationSeconds
	}

	now := m.now()
	poll := &types.Poll{
		ID:        m.nextID(now),
		Question:  question,
		Options:   append([]string(nil), options...),
		Duration:  durationSeconds,
		CreatedAt: now,
		Active:    true,
	}
	m.current = poll

	if durationSeconds > 0 {
		pollID := poll.ID
		m.timer = m.scheduler.AfterFunc(time.Duration(durationSeconds)*time.Second, func() {
			m.onExpire(pollID)
		})
	}

	return poll.Clone()
}

// nextID derives ids from the clock, forced strictly increasing
func (m *Manager) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id
	return id
}

// End deactivates the poll with pollID if it is current and active.
// Only the first of concurrent calls reports true.
func (m *Manager) End(pollID int64) (*types.Poll, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.ID != pollID || !m.current.Active {
		return nil, false
	}

	ended := m.now()
	m.current.Active = false
	m.current.EndedAt = &ended

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	return m.current.Clone(), true
}

// Current returns a copy of the latest poll regardless of state, or nil
func (m *Manager) Current() *types.Poll {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// ActivePoll returns a copy of the current poll only while it accepts answers
func (m *Manager) ActivePoll() (*types.Poll, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil || !m.current.Active {
		return nil, false
	}
	return m.current.Clone(), true
}

// IsActive reports whether pollID is the current poll and still active
func (m *Manager) IsActive(pollID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil && m.current.ID == pollID && m.current.Active
}

// Stop cancels any pending expiry
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
