// Package ratelimit holds the in-memory limiters guarding sign-in (keyed by
// client IP) and message posting (keyed by user id).
package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type entry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter admits limit events per key within a fixed window. The event that
// goes over blocks the key until the window ends, or for the cooldown when
// one is set.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	limit    int
	window   time.Duration
	cooldown time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoginLimiter allows maxAttempts sign-ins per IP within window. A
// successful sign-in should call Reset.
func NewLoginLimiter(maxAttempts int, window time.Duration) *Limiter {
	return newLimiter(maxAttempts, window, 0)
}

// NewMessageLimiter allows maxMessages posts per user within window, then
// rejects every post for cooldown.
func NewMessageLimiter(maxMessages int, window, cooldown time.Duration) *Limiter {
	return newLimiter(maxMessages, window, cooldown)
}

func newLimiter(limit int, window, cooldown time.Duration) *Limiter {
	l := &Limiter{
		entries:  make(map[string]*entry),
		limit:    limit,
		window:   window,
		cooldown: cooldown,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow counts one event for key and reports whether it is admitted.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if ok && now.Before(e.blockedUntil) {
		return false
	}
	if !ok || !e.blockedUntil.IsZero() || now.Sub(e.windowStart) > l.window {
		l.entries[key] = &entry{count: 1, windowStart: now}
		return true
	}

	e.count++
	if e.count <= l.limit {
		return true
	}
	if l.cooldown > 0 {
		e.blockedUntil = now.Add(l.cooldown)
	} else {
		e.blockedUntil = e.windowStart.Add(l.window)
	}
	return false
}

// RetryAfter is how long key stays blocked, or 0.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return 0
	}
	return max(e.blockedUntil.Sub(l.now()), 0)
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops keys whose window and block have both passed.
func (l *Limiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.Sub(e.windowStart) > l.window && !now.Before(e.blockedUntil) {
			delete(l.entries, key)
		}
	}
}

// ExtractIP returns the client address, preferring the first
// X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Seconds rounds d up to whole seconds, the unit of Retry-After.
func Seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// FormatWait renders d for an error message: "15 seconds", "2 minutes".
func FormatWait(d time.Duration) string {
	n, unit := Seconds(d), "second"
	if n >= 60 {
		n, unit = (n+59)/60, "minute"
	}
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}
