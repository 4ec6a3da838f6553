// Package middleware holds HTTP middleware shared by the chat API:
// per-client rate limiting and CORS.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/floorservicemsk/dealerchat/internal/config"
)

// Limiter is an in-memory sliding-window rate limiter keyed by client
// identifier. Expired windows are pruned lazily on access; a background
// sweeper drops clients that went idle, since session IDs are unique
// and would otherwise accumulate forever.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// NewLimiter creates a limiter allowing limit requests per window and
// starts its idle-client sweeper.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	limit := cfg.PerWindow
	if limit <= 0 {
		limit = 20
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go l.sweepLoop()

	return l
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.stopped.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes clients whose every attempt has left the window.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for clientID, attempts := range l.windows {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(cutoff) {
			delete(l.windows, clientID)
		}
	}
}

// Check records an attempt for the client and reports whether it is
// allowed. When denied, retryAfter says how long until the oldest
// attempt leaves the window.
func (l *Limiter) Check(clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.windows[clientID][:0]
	for _, at := range l.windows[clientID] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= l.limit {
		l.windows[clientID] = kept
		retryAfter := kept[0].Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	l.windows[clientID] = append(kept, now)
	return true, 0
}

// Remaining reports how many attempts the client has left in the
// current window without recording one.
func (l *Limiter) Remaining(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	used := 0
	for _, at := range l.windows[clientID] {
		if at.After(cutoff) {
			used++
		}
	}
	if used >= l.limit {
		return 0
	}
	return l.limit - used
}

// Limit returns the configured per-window limit.
func (l *Limiter) Limit() int {
	return l.limit
}

// SetRateHeaders writes the standard X-RateLimit headers for the
// client's current window.
func SetRateHeaders(w http.ResponseWriter, limiter *Limiter, clientID string) {
	if limiter == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(clientID)))
}
