package router

import (
	"context"
	"sync"
	"time"
)

// DefaultLimit is the number of commands a user may send per window.
const DefaultLimit = 100

// RateLimiter counts commands per user in fixed one-minute windows.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]*clientLimit
}

type clientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter allows DefaultLimit commands per minute.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limit:   DefaultLimit,
		window:  time.Minute,
		now:     time.Now,
		clients: make(map[string]*clientLimit),
	}
}

// Allow records one command for userID and reports whether it is within
// the limit.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[userID]
	if !ok || now.Sub(c.windowStart) >= rl.window {
		rl.clients[userID] = &clientLimit{count: 1, windowStart: now}
		return true
	}
	if c.count >= rl.limit {
		return false
	}
	c.count++
	return true
}

// Cleanup forgets users idle for five windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for userID, c := range rl.clients {
		if now.Sub(c.windowStart) > 5*rl.window {
			delete(rl.clients, userID)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
