package router

import (
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting
// ARCHITECTURAL DISCOVERY: Per-client state tracking with explicit Forget on
// disconnect prevents memory leaks
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*ClientLimit
	now     func() time.Time
}

// ClientLimit tracks rate limiting for a single connection
// FUNCTIONAL DISCOVERY: Fixed window reset provides an exact limit per window
type ClientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter allows limit frames per window; limit <= 0 disables limiting
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*ClientLimit),
		now:     time.Now,
	}
}

// Allow checks if the connection can send another frame
func (rl *RateLimiter) Allow(connID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	limit, exists := rl.clients[connID]
	if !exists {
		rl.clients[connID] = &ClientLimit{
			messageCount: 1,
			windowStart:  now,
		}
		return true
	}

	if now.Sub(limit.windowStart) >= rl.window {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= rl.limit {
		return false
	}

	limit.messageCount++
	return true
}

// Forget drops tracking for a closed connection
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, connID)
}

// Cleanup removes entries idle for more than five windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for connID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*rl.window {
			delete(rl.clients, connID)
		}
	}
}

// Tracked returns how many connections currently hold limiter state
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
