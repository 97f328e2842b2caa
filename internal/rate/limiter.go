package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may perform one more
// action within limit actions per window. When it may not, the returned
// duration says how long to wait.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

// maxIdleKeys bounds the bucket map before idle buckets are swept.
const maxIdleKeys = 10000

// MemoryLimiter keeps one token bucket per key in process memory. A bucket
// holds limit tokens and refills one token every window/limit.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return true, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		if len(m.buckets) >= maxIdleKeys {
			m.sweep(now)
		}
		b = &bucket{
			lim:    rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:  limit,
			window: window,
		}
		m.buckets[key] = b
	}
	b.lastSeen = now

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops buckets untouched for longer than their window; they would be
// full again anyway.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > b.window {
			delete(m.buckets, key)
		}
	}
}
