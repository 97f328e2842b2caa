package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkwell/internal/logx"
)

type fakePurger struct {
	calls atomic.Int32
	err   error
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestRegisterValidatesSpec(t *testing.T) {
	s := NewScheduler(logx.Nop(), time.Second)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register("a", "@every 1h", noop))
	require.NoError(t, s.Register("b", "*/5 * * * *", noop))
	assert.Error(t, s.Register("a", "@every 1h", noop))
	assert.Error(t, s.Register("c", "not a schedule", noop))
}

func TestTriggerRunsPurge(t *testing.T) {
	s := NewScheduler(logx.Nop(), time.Second)
	p := &fakePurger{}
	require.NoError(t, s.Register(PurgeExpiredTokens, "@every 1h", PurgeTokens(p, logx.Nop())))

	require.NoError(t, s.Trigger(context.Background(), PurgeExpiredTokens))
	assert.Equal(t, int32(1), p.calls.Load())

	p.err = errors.New("db down")
	assert.EqualError(t, s.Trigger(context.Background(), PurgeExpiredTokens), "db down")
	assert.Error(t, s.Trigger(context.Background(), "missing"))
}

func TestRunFiresAndStops(t *testing.T) {
	s := NewScheduler(logx.Nop(), time.Second)
	p := &fakePurger{}
	require.NoError(t, s.Register(PurgeExpiredTokens, "@every 1s", PurgeTokens(p, logx.Nop())))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
