package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter answers whether one more event is allowed under the key's window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// MemoryLimiter is a sliding-window limiter for single-instance deployments.
type MemoryLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time

	stop chan struct{}
	once sync.Once
}

func NewMemoryLimiter(window time.Duration, max int) *MemoryLimiter {
	l := &MemoryLimiter{
		window: window,
		max:    max,
		now:    time.Now,
		events: make(map[string][]time.Time),
		stop:   make(chan struct{}),
	}
	go l.janitor()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.events[key] = kept
		return false, nil
	}
	l.events[key] = append(kept, now)
	return true, nil
}

func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

// janitor evicts keys whose entire window has elapsed so idle sources do
// not accumulate.
func (l *MemoryLimiter) janitor() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := l.now().Add(-l.window)
			l.mu.Lock()
			for key, times := range l.events {
				if len(times) == 0 || !times[len(times)-1].After(cutoff) {
					delete(l.events, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
