package host

import (
	"context"
	"sync"
	"time"
)

// DefaultBudget is how long a tick may spend running queued tasks.
const DefaultBudget = 30 * time.Millisecond

// Scheduler runs the computers' tick callback and any work queued for the
// main loop. Tasks run on whichever goroutine calls Tick.
type Scheduler struct {
	mu     sync.Mutex
	tick   func()
	tasks  []func()
	budget time.Duration
	now    func() time.Time

	metrics *Metrics
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBudget sets the per-tick time budget for queued tasks.
func WithBudget(budget time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.budget = budget
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSchedulerMetrics sets the collectors to report to.
func WithSchedulerMetrics(metrics *Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = metrics
	}
}

// NewScheduler creates a scheduler with nothing to do.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		budget: DefaultBudget,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// SetTick sets the callback run at the start of every tick.
func (s *Scheduler) SetTick(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = fn
}

// QueueImmediate queues fn to run on a later tick. It is safe to call from
// any goroutine, including from inside a task.
func (s *Scheduler) QueueImmediate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, fn)
	s.metrics.tasksPending.Set(float64(len(s.tasks)))
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Tick runs the tick callback, then runs queued tasks in order until the
// queue is empty or the budget is spent. Tasks left over wait for the next
// tick. It returns the number of tasks run.
func (s *Scheduler) Tick() int {
	start := s.now()
	defer func() {
		s.metrics.tickDuration.Observe(s.now().Sub(start).Seconds())
	}()

	s.mu.Lock()
	tick := s.tick
	s.mu.Unlock()
	if tick != nil {
		tick()
	}

	ran := 0
	for s.now().Sub(start) < s.budget {
		task, ok := s.pop()
		if !ok {
			break
		}
		task()
		ran++
		s.metrics.tasksRun.Inc()
	}
	return ran
}

func (s *Scheduler) pop() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return nil, false
	}
	task := s.tasks[0]
	s.tasks[0] = nil
	s.tasks = s.tasks[1:]
	s.metrics.tasksPending.Set(float64(len(s.tasks)))
	return task, true
}

// Run ticks every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}
