// Package workerpool implements a fixed-size worker pool with a bounded
// FIFO task queue, adapted from the corpus's async_processor.go.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task is one unit of work submitted to the pool.
type Task func(ctx context.Context)

// Metrics mirrors the corpus's promauto-at-construction convention.
type Metrics struct {
	QueueDepth   prometheus.Gauge
	ActiveWorkers prometheus.Gauge
	TasksTotal   *prometheus.CounterVec
}

// NewMetrics registers the pool's collectors under logsentinel_workerpool.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "logsentinel", Subsystem: "workerpool", Name: "queue_depth",
			Help: "Number of tasks currently queued.",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "logsentinel", Subsystem: "workerpool", Name: "active_workers",
			Help: "Number of workers currently executing a task.",
		}),
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logsentinel", Subsystem: "workerpool", Name: "tasks_total",
			Help: "Total tasks processed, by outcome.",
		}, []string{"outcome"}),
	}
}

// Pool is a fixed-size worker pool. Submit is non-blocking: if the queue
// is full it returns ErrOverload immediately rather than applying
// backpressure to the caller, since callers here are batch dispatchers
// that need to know synchronously whether the pool accepted the work.
type Pool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	metrics *Metrics
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending int
	stopped atomic.Bool
}

// Config tunes a Pool.
type Config struct {
	WorkerCount int
	QueueSize   int
}

// New builds and starts a Pool with cfg.WorkerCount goroutines consuming
// from a queue of capacity cfg.QueueSize.
func New(parent context.Context, cfg Config, metrics *Metrics) *Pool {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	ctx, cancel := context.WithCancel(parent)
	p := &Pool{
		tasks:   make(chan Task, cfg.QueueSize),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(task)
		}
	}
}

func (p *Pool) runTask(task Task) {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()
	p.metrics.QueueDepth.Set(float64(p.PendingTasks()))
	p.metrics.ActiveWorkers.Inc()
	defer p.metrics.ActiveWorkers.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.metrics.TasksTotal.WithLabelValues("panic").Inc()
		}
	}()

	task(p.ctx)
	p.metrics.TasksTotal.WithLabelValues("completed").Inc()
}

// Submit enqueues task without blocking. Returns ErrOverload if the queue
// is full.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	select {
	case p.tasks <- task:
		p.pending++
		p.mu.Unlock()
		p.metrics.QueueDepth.Set(float64(p.PendingTasks()))
		return nil
	default:
		p.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrOverload, "worker pool queue is full")
	}
}

// HasHeadroom reports whether the queue's current depth is below
// threshold, expressed as a percentage (0-100) of queue capacity. This
// backs the batcher's pool-gate check (spec.md's pool-threshold gate).
func (p *Pool) HasHeadroom(thresholdPercent int) bool {
	capacity := cap(p.tasks)
	if capacity == 0 {
		return true
	}
	usedPercent := (p.PendingTasks() * 100) / capacity
	return usedPercent < thresholdPercent
}

// PendingTasks reports the current queue depth.
func (p *Pool) PendingTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Stopped reports whether Shutdown has been called, for the health endpoint.
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}

// Shutdown stops accepting new work implicitly (callers should stop
// calling Submit) and waits up to timeout for in-flight and queued tasks
// to drain before canceling outstanding work's context.
func (p *Pool) Shutdown(timeout time.Duration) {
	p.stopped.Store(true)
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		p.cancel()
		<-done
	}
}
