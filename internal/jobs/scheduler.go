// Package jobs runs periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Func is a unit of scheduled work. It receives a context bounded by the
// scheduler's per-run timeout.
type Func func(ctx context.Context) error

type job struct {
	name string
	spec string
	fn   Func
}

// Scheduler wraps a cron runner. Jobs are registered before Run; a run that
// is still in progress when its next tick fires is skipped.
type Scheduler struct {
	mu      sync.Mutex
	log     zerolog.Logger
	timeout time.Duration
	parser  cron.Parser
	jobs    map[string]job
	order   []string
}

func NewScheduler(log zerolog.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		log:     log,
		timeout: timeout,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:    map[string]job{},
	}
}

// Register adds a named job. spec is a five-field cron expression or a
// descriptor such as "@every 1h".
func (s *Scheduler) Register(name, spec string, fn Func) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = job{name: name, spec: spec, fn: fn}
	s.order = append(s.order, name)
	return nil
}

// Run starts every registered job and blocks until ctx is done, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)

	s.mu.Lock()
	for _, name := range s.order {
		j := s.jobs[name]
		if _, err := c.AddFunc(j.spec, func() { s.execute(ctx, j) }); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	count := len(s.order)
	s.mu.Unlock()

	c.Start()
	s.log.Info().Int("jobs", count).Msg("scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// Trigger runs the named job once, synchronously.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) execute(parent context.Context, j job) error {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.fn(ctx)
	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("job", j.name).Dur("took", time.Since(start)).Msg("job finished")
	return err
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
