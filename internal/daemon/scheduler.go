package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskFunc is the body of a scheduled task.
type TaskFunc func(ctx context.Context, now time.Time)

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	next     time.Time
	runs     int
}

// Scheduler runs named recurring tasks from a single goroutine. It wakes on
// wall-clock second boundaries, so tasks never overlap one another.
type Scheduler struct {
	mu     sync.Mutex
	logger *slog.Logger
	tasks  []*task
	now    func() time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Every registers fn to run on the first tick and then every interval.
// Intervals are rounded up to whole seconds.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc) {
	if interval < time.Second {
		interval = time.Second
	}
	interval = interval.Round(time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &task{name: name, interval: interval, fn: fn})
}

// SetInterval changes a task's interval. The new interval applies after
// the task's next run.
func (s *Scheduler) SetInterval(name string, interval time.Duration) bool {
	if interval < time.Second {
		interval = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.name == name {
			t.interval = interval.Round(time.Second)
			return true
		}
	}
	return false
}

// Tasks returns the registered task names in run order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.name
	}
	return names
}

// Runs returns how many times the named task has run.
func (s *Scheduler) Runs(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.name == name {
			return t.runs
		}
	}
	return 0
}

// Start begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Debug("scheduler started", "tasks", s.Tasks())
	return nil
}

// Stop ends the tick loop and waits for the running task to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
	s.logger.Debug("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(untilNextSecond(s.clock()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunDue(ctx, s.clock())
			timer.Reset(untilNextSecond(s.clock()))
		}
	}
}

// RunDue runs, in registration order, every task due at now and returns
// the names of those that ran.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) []string {
	tick := now.Truncate(time.Second)

	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if t.next.IsZero() || !tick.Before(t.next) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	ran := make([]string, 0, len(due))
	for _, t := range due {
		if ctx.Err() != nil {
			break
		}
		s.run(ctx, t, now)

		s.mu.Lock()
		t.next = tick.Add(t.interval)
		t.runs++
		s.mu.Unlock()
		ran = append(ran, t.name)
	}
	return ran
}

// run invokes one task. A panicking task is logged and the loop carries on.
func (s *Scheduler) run(ctx context.Context, t *task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "task", t.name, "error", fmt.Sprint(r))
		}
	}()
	t.fn(ctx, now)
}

func (s *Scheduler) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// untilNextSecond returns the wait until the next whole second after now.
func untilNextSecond(now time.Time) time.Duration {
	return now.Truncate(time.Second).Add(time.Second).Sub(now)
}
