package batching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsentinel/logsentinel/internal/domain"
)

func alwaysOpen() bool { return true }

func TestBatcher_DispatchesOnSizeTrigger(t *testing.T) {
	var mu sync.Mutex
	var dispatched [][]domain.AnalysisTask

	b := New(Config{RingCapacity: 10, BatchSize: 3, RefreshInterval: time.Hour}, func(batch []domain.AnalysisTask) error {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, batch)
		return nil
	}, alwaysOpen)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Push(domain.AnalysisTask{TraceID: "t"}))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dispatched, 1)
	assert.Len(t, dispatched[0], 3)
	assert.Equal(t, 0, b.PendingCount())
}

func TestBatcher_RejectsWhenFull(t *testing.T) {
	b := New(Config{RingCapacity: 2, BatchSize: 100, RefreshInterval: time.Hour}, func([]domain.AnalysisTask) error {
		return nil
	}, alwaysOpen)

	require.NoError(t, b.Push(domain.AnalysisTask{}))
	require.NoError(t, b.Push(domain.AnalysisTask{}))
	assert.Error(t, b.Push(domain.AnalysisTask{}))
}

func TestBatcher_TimeoutFlushesPartialBatch(t *testing.T) {
	flushed := make(chan int, 1)
	b := New(Config{RingCapacity: 10, BatchSize: 100, RefreshInterval: 10 * time.Millisecond}, func(batch []domain.AnalysisTask) error {
		flushed <- len(batch)
		return nil
	}, alwaysOpen)

	require.NoError(t, b.Push(domain.AnalysisTask{}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	select {
	case n := <-flushed:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for periodic flush")
	}
}

func TestBatcher_GateClosedLeavesBatchBuffered(t *testing.T) {
	calls := 0
	b := New(Config{RingCapacity: 10, BatchSize: 2, RefreshInterval: time.Hour}, func(batch []domain.AnalysisTask) error {
		calls++
		return nil
	}, func() bool { return false })

	require.NoError(t, b.Push(domain.AnalysisTask{}))
	require.NoError(t, b.Push(domain.AnalysisTask{}))

	assert.Equal(t, 0, calls, "gated dispatch must not reach the dispatcher")
	assert.Equal(t, 2, b.PendingCount(), "tasks must remain buffered, not dropped")
}

type fakeRealtimeSink struct {
	mu      sync.Mutex
	samples []struct{ qps, backpressure float64 }
}

func (f *fakeRealtimeSink) UpdateRealtimeMetrics(qps, backpressure float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, struct{ qps, backpressure float64 }{qps, backpressure})
}

func (f *fakeRealtimeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

func TestBatcher_SamplesRealtimeMetricsWhenSinkSet(t *testing.T) {
	b := New(Config{RingCapacity: 10, BatchSize: 1, RefreshInterval: time.Hour}, func(batch []domain.AnalysisTask) error {
		return nil
	}, alwaysOpen)

	sink := &fakeRealtimeSink{}
	b.SetRealtimeSink(sink)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	require.NoError(t, b.Push(domain.AnalysisTask{}))

	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond,
		"expected at least one realtime metrics sample")
}

func TestBatcher_NoSamplingWithoutSink(t *testing.T) {
	b := New(Config{RingCapacity: 10, BatchSize: 1, RefreshInterval: time.Hour}, func(batch []domain.AnalysisTask) error {
		return nil
	}, alwaysOpen)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	b.Start(ctx)
	b.Stop()
}

func TestBatcher_DispatcherRejectionLeavesBatchBuffered(t *testing.T) {
	b := New(Config{RingCapacity: 10, BatchSize: 2, RefreshInterval: time.Hour}, func(batch []domain.AnalysisTask) error {
		return assert.AnError
	}, alwaysOpen)

	require.NoError(t, b.Push(domain.AnalysisTask{}))
	require.NoError(t, b.Push(domain.AnalysisTask{}))

	assert.Equal(t, 2, b.PendingCount())
}
