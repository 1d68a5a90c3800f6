package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ExecutesSubmittedTasks(t *testing.T) {
	p := New(context.Background(), Config{WorkerCount: 2, QueueSize: 10}, nil)
	defer p.Shutdown(time.Second)

	var count int64
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) {
			atomic.AddInt64(&count, 1)
		}))
	}

	require.Eventually(t, func() bool { return atomic.LoadInt64(&count) == 5 }, time.Second, time.Millisecond)
}

func TestPool_SubmitRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	p := New(context.Background(), Config{WorkerCount: 1, QueueSize: 1}, nil)
	defer func() {
		close(block)
		p.Shutdown(time.Second)
	}()

	require.NoError(t, p.Submit(func(ctx context.Context) { <-block }))
	require.NoError(t, p.Submit(func(ctx context.Context) {}))

	err := p.Submit(func(ctx context.Context) {})
	assert.Error(t, err)
}

func TestPool_HasHeadroomReflectsThreshold(t *testing.T) {
	block := make(chan struct{})
	p := New(context.Background(), Config{WorkerCount: 1, QueueSize: 10}, nil)
	defer func() {
		close(block)
		p.Shutdown(time.Second)
	}()

	require.NoError(t, p.Submit(func(ctx context.Context) { <-block }))
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) {}))
	}

	assert.False(t, p.HasHeadroom(50), "6 or 7 of 10 queue slots used should not have headroom under a 50% threshold")
}

func TestPool_ShutdownDrainsBeforeTimeout(t *testing.T) {
	p := New(context.Background(), Config{WorkerCount: 1, QueueSize: 10}, nil)

	var ran int64
	require.NoError(t, p.Submit(func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&ran, 1)
	}))

	p.Shutdown(time.Second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestPool_StoppedReflectsShutdown(t *testing.T) {
	p := New(context.Background(), Config{WorkerCount: 1, QueueSize: 1}, nil)
	assert.False(t, p.Stopped())

	p.Shutdown(time.Second)
	assert.True(t, p.Stopped())
}
