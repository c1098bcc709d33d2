package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquidDev-CC/bedrock/pkg/computer/host"
)

// fakeClock advances by step every time it is read.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) read() time.Time {
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func TestSchedulerRunsTickThenTasks(t *testing.T) {
	scheduler := host.NewScheduler()

	var order []string
	scheduler.SetTick(func() { order = append(order, "tick") })
	scheduler.QueueImmediate(func() { order = append(order, "a") })
	scheduler.QueueImmediate(func() { order = append(order, "b") })

	assert.Equal(t, 2, scheduler.Pending())
	assert.Equal(t, 2, scheduler.Tick())
	assert.Equal(t, []string{"tick", "a", "b"}, order)
	assert.Equal(t, 0, scheduler.Pending())

	// An empty queue still ticks.
	assert.Equal(t, 0, scheduler.Tick())
	assert.Equal(t, []string{"tick", "a", "b", "tick"}, order)
}

func TestSchedulerBudget(t *testing.T) {
	// Each clock read moves 10ms on: the start read, then one read per
	// budget check, so a 30ms budget fits two tasks.
	clock := &fakeClock{now: time.Unix(0, 0), step: 10 * time.Millisecond}
	scheduler := host.NewScheduler(host.WithClock(clock.read), host.WithBudget(30*time.Millisecond))

	ran := 0
	for i := 0; i < 5; i++ {
		scheduler.QueueImmediate(func() { ran++ })
	}

	assert.Equal(t, 2, scheduler.Tick())
	assert.Equal(t, 2, ran)
	assert.Equal(t, 3, scheduler.Pending())

	assert.Equal(t, 2, scheduler.Tick())
	assert.Equal(t, 1, scheduler.Tick())
	assert.Equal(t, 5, ran)
}

func TestSchedulerTaskQueuedFromTask(t *testing.T) {
	scheduler := host.NewScheduler()

	var order []string
	scheduler.QueueImmediate(func() {
		order = append(order, "first")
		scheduler.QueueImmediate(func() { order = append(order, "nested") })
	})

	scheduler.Tick()
	assert.Equal(t, []string{"first", "nested"}, order)
}

func TestSchedulerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	scheduler := host.NewScheduler(host.WithSchedulerMetrics(host.NewMetrics(reg)))

	scheduler.QueueImmediate(func() {})
	scheduler.QueueImmediate(func() {})
	scheduler.Tick()

	assert.Equal(t, 0.0, gaugeValue(t, reg, "bedrock_scheduler_tasks_pending"))
	count, err := testutil.GatherAndCount(reg, "bedrock_scheduler_tasks_run_total", "bedrock_scheduler_tick_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSchedulerRun(t *testing.T) {
	scheduler := host.NewScheduler()

	ticked := make(chan struct{}, 1)
	scheduler.SetTick(func() {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx, time.Millisecond) }()

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never ticked")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
