package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiterBurstThenBlock(t *testing.T) {
	l := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("ip:1", 3, time.Minute)
		assert.True(t, ok, "request %d", i)
	}
	ok, retry := l.Allow("ip:1", 3, time.Minute)
	assert.False(t, ok)
	assert.InDelta(t, float64(20*time.Second), float64(retry), float64(time.Second))

	// Other keys have their own bucket.
	ok, _ = l.Allow("ip:2", 3, time.Minute)
	assert.True(t, ok)

	// One token refills every window/limit.
	now = now.Add(21 * time.Second)
	ok, _ = l.Allow("ip:1", 3, time.Minute)
	assert.True(t, ok)
	ok, _ = l.Allow("ip:1", 3, time.Minute)
	assert.False(t, ok)
}

func TestMemoryLimiterDisabled(t *testing.T) {
	l := NewMemory()
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("k", 0, time.Minute)
		assert.True(t, ok)
	}
}

func TestMemoryLimiterSweep(t *testing.T) {
	l := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("old", 1, time.Second)
	now = now.Add(time.Minute)
	l.Allow("fresh", 1, time.Second)
	l.sweep(now)

	_, hasOld := l.buckets["old"]
	_, hasFresh := l.buckets["fresh"]
	assert.False(t, hasOld)
	assert.True(t, hasFresh)
}
