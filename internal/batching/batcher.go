// Package batching implements the micro-batching ring buffer that sits
// between ingest and the worker pool: tasks accumulate until either the
// batch fills or a periodic tick fires, whichever comes first. Adapted
// from the corpus's bounded ring-buffer batching component.
package batching

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// Dispatcher is the sink a Batcher hands full batches to: the worker
// pool's Submit method. Returning an error means the pool rejected the
// batch (queue full); the batcher keeps those tasks buffered and offers
// them again on the next trigger.
type Dispatcher func(batch []domain.AnalysisTask) error

// RealtimeSink receives the batcher's ~1s live-gauge samples (qps,
// backpressure), matching the Log Repository's update_realtime_metrics.
type RealtimeSink interface {
	UpdateRealtimeMetrics(qps, backpressure float64)
}

// sampleInterval is the fixed cadence the live gauges are sampled at,
// independent of the batch flush's RefreshInterval.
const sampleInterval = time.Second

// Batcher is a bounded ring buffer of pending tasks with two dispatch
// triggers: the buffer reaching its configured batch size, or a ticker
// firing on RefreshInterval. Both paths are additionally gated by
// poolGate, which reports whether the worker pool has headroom; when it
// doesn't, a full buffer is left to wait for the next successful gate
// check instead of dispatching into a pool that would just reject it.
type Batcher struct {
	mu         sync.Mutex
	buffer     []domain.AnalysisTask
	head       int
	count      int
	capacity   int
	batchSize  int
	dispatcher Dispatcher
	poolGate   func() bool

	tickerInterval time.Duration
	stopOnce       sync.Once
	stopCh         chan struct{}
	wg             sync.WaitGroup

	totalProcessed int64
	metricsSink    RealtimeSink
}

// Config tunes a Batcher.
type Config struct {
	RingCapacity    int
	BatchSize       int
	RefreshInterval time.Duration
}

// New builds a Batcher. poolGate is consulted before every dispatch
// attempt (size-triggered or timer-triggered) and must report whether the
// worker pool currently has room to accept another batch.
func New(cfg Config, dispatcher Dispatcher, poolGate func() bool) *Batcher {
	return &Batcher{
		buffer:         make([]domain.AnalysisTask, cfg.RingCapacity),
		capacity:       cfg.RingCapacity,
		batchSize:      cfg.BatchSize,
		dispatcher:     dispatcher,
		poolGate:       poolGate,
		tickerInterval: cfg.RefreshInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetRealtimeSink wires the Log Repository (or any RealtimeSink) to receive
// this batcher's ~1s qps/backpressure samples. Must be called before Start;
// when unset, no sampling goroutine runs.
func (b *Batcher) SetRealtimeSink(sink RealtimeSink) {
	b.metricsSink = sink
}

// Start launches the periodic-flush goroutine, plus the live-gauge sampler
// when a RealtimeSink has been set. Call Stop to terminate both.
func (b *Batcher) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.tickLoop(ctx)

	if b.metricsSink != nil {
		b.wg.Add(1)
		go b.sampleLoop(ctx)
	}
}

// sampleLoop samples total_processed_global every sampleInterval and
// publishes qps = delta/elapsed and backpressure = count/capacity, per
// spec's live-gauge requirement.
func (b *Batcher) sampleLoop(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	last := time.Now()
	var lastTotal int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case now := <-ticker.C:
			total := atomic.LoadInt64(&b.totalProcessed)
			elapsed := now.Sub(last).Seconds()
			var qps float64
			if elapsed > 0 {
				qps = float64(total-lastTotal) / elapsed
			}

			b.mu.Lock()
			var backpressure float64
			if b.capacity > 0 {
				backpressure = float64(b.count) / float64(b.capacity)
			}
			b.mu.Unlock()

			b.metricsSink.UpdateRealtimeMetrics(qps, backpressure)
			last, lastTotal = now, total
		}
	}
}

// Stop halts the periodic-flush goroutine and waits for it to exit.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

func (b *Batcher) tickLoop(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.onTimeout()
		}
	}
}

// Push appends one task to the ring buffer. If the buffer is full it
// returns ErrOverload without blocking, since this is called from the
// HTTP request path and must never stall a client. If the push fills the
// buffer to batchSize, a dispatch is attempted immediately under the same
// lock acquisition that performed the push.
func (b *Batcher) Push(task domain.AnalysisTask) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		return apperrors.Wrap(apperrors.ErrOverload, "batch ring buffer is full")
	}

	tail := (b.head + b.count) % b.capacity
	b.buffer[tail] = task
	b.count++

	if b.count >= b.batchSize {
		b.tryDispatchLocked(b.batchSize)
	}
	return nil
}

// onTimeout is invoked by the ticker goroutine; it flushes whatever is
// currently buffered, even a partial batch, since staleness matters more
// than batch fullness once the refresh interval has elapsed.
func (b *Batcher) onTimeout() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return
	}
	b.tryDispatchLocked(b.count)
}

// tryDispatchLocked attempts to hand up to limit buffered tasks to the
// dispatcher. It must be called with mu held. If the pool gate reports no
// headroom, or the dispatcher itself rejects the batch, the tasks are
// left in the buffer for the next trigger rather than dropped: this
// batcher never discards a task once accepted by Push, it only delays
// dispatch under backpressure.
func (b *Batcher) tryDispatchLocked(limit int) {
	if b.poolGate != nil && !b.poolGate() {
		return
	}
	if limit > b.count {
		limit = b.count
	}
	if limit == 0 {
		return
	}

	batch := make([]domain.AnalysisTask, limit)
	for i := 0; i < limit; i++ {
		batch[i] = b.buffer[(b.head+i)%b.capacity]
	}

	if err := b.dispatcher(batch); err != nil {
		// Pool rejected the batch (queue full): leave the ring buffer
		// untouched so the same tasks are retried on the next trigger.
		return
	}

	b.head = (b.head + limit) % b.capacity
	b.count -= limit
	atomic.AddInt64(&b.totalProcessed, int64(limit))
}

// PendingCount reports how many tasks currently sit in the buffer.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
