package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorker struct {
	*BaseWorker
	runs    int32
	runFunc func(ctx context.Context) error
}

func newStubWorker(name string, interval time.Duration, enabled bool) *stubWorker {
	return &stubWorker{BaseWorker: NewBaseWorker(name, interval, enabled)}
}

func (s *stubWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&s.runs, 1)
	if s.runFunc != nil {
		return s.runFunc(ctx)
	}
	return nil
}

func (s *stubWorker) Runs() int {
	return int(atomic.LoadInt32(&s.runs))
}

func TestSchedulerRunsWorkerImmediatelyAndOnTicks(t *testing.T) {
	scheduler := NewScheduler()

	scanner := newStubWorker("scanner", 100*time.Millisecond, true)
	scheduler.RegisterWorker(scanner)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// One immediate run plus at least one tick
	assert.GreaterOrEqual(t, scanner.Runs(), 2)
}

func TestSchedulerWaitsForInFlightRunOnStop(t *testing.T) {
	scheduler := NewScheduler()

	slow := newStubWorker("slow-scan", 100*time.Millisecond, true)
	slow.runFunc = func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	scheduler.RegisterWorker(slow)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
}

func TestSchedulerStopsOnContextCancellation(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newStubWorker("scanner", 100*time.Millisecond, true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	cancel()
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
}

func TestSchedulerSkipsDisabledWorkers(t *testing.T) {
	scheduler := NewScheduler()

	active := newStubWorker("scanner", 100*time.Millisecond, true)
	inactive := newStubWorker("backfill", 100*time.Millisecond, false)
	scheduler.RegisterWorker(active)
	scheduler.RegisterWorker(inactive)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, active.Runs(), 0)
	assert.Equal(t, 0, inactive.Runs())
}

func TestSchedulerRunsWorkersIndependently(t *testing.T) {
	scheduler := NewScheduler()

	scanner := newStubWorker("scanner", 100*time.Millisecond, true)
	collector := newStubWorker("sentiment", 100*time.Millisecond, true)
	backfill := newStubWorker("backfill", 100*time.Millisecond, true)
	scheduler.RegisterWorker(scanner)
	scheduler.RegisterWorker(collector)
	scheduler.RegisterWorker(backfill)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, scanner.Runs(), 0)
	assert.Greater(t, collector.Runs(), 0)
	assert.Greater(t, backfill.Runs(), 0)
}

func TestSchedulerRejectsDoubleStart(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newStubWorker("scanner", 100*time.Millisecond, true))

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))
	assert.Error(t, scheduler.Start(ctx))

	scheduler.Stop()
}

func TestSchedulerGetWorkersPreservesRegistrationOrder(t *testing.T) {
	scheduler := NewScheduler()

	scheduler.RegisterWorker(newStubWorker("scanner", 100*time.Millisecond, true))
	scheduler.RegisterWorker(newStubWorker("backfill", 200*time.Millisecond, false))

	registered := scheduler.GetWorkers()
	require.Len(t, registered, 2)
	assert.Equal(t, "scanner", registered[0].Name())
	assert.Equal(t, "backfill", registered[1].Name())
}
