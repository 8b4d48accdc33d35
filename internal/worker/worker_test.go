package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_RunsAllTasks(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(2, 10)
	pool.Start(context.Background())

	for i := 0; i < 5; i++ {
		pool.Submit(func(ctx context.Context) {
			processed.Add(1)
		})
	}
	pool.Close()

	if processed.Load() != 5 {
		t.Errorf("expected 5 tasks processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(4, 100)
	pool.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pool.Submit(func(ctx context.Context) {
				processed.Add(1)
			})
		}
		close(done)
	}()

	<-done
	pool.Close()

	if processed.Load() != 100 {
		t.Errorf("expected 100 tasks processed, got %d", processed.Load())
	}
}

func TestPool_CancelledContextSkipsQueuedTasks(t *testing.T) {
	var started atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())

	pool := NewPool(1, 10)
	pool.Start(ctx)

	blocker := make(chan struct{})
	firstRunning := make(chan struct{})
	pool.Submit(func(ctx context.Context) {
		started.Add(1)
		close(firstRunning)
		<-blocker
	})
	for i := 0; i < 5; i++ {
		pool.Submit(func(ctx context.Context) {
			started.Add(1)
		})
	}

	// Cancel while the first task holds the only worker, then release it.
	<-firstRunning
	cancel()
	close(blocker)
	pool.Close()

	if started.Load() != 1 {
		t.Errorf("expected queued tasks to be abandoned after cancel, ran %d", started.Load())
	}
}

func TestPool_CloseWaitsForInFlightTasks(t *testing.T) {
	var completed atomic.Int64

	pool := NewPool(2, 10)
	pool.Start(context.Background())

	for i := 0; i < 4; i++ {
		pool.Submit(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
		})
	}

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Close() timed out")
	}

	if completed.Load() != 4 {
		t.Errorf("Close must wait for in-flight tasks, completed %d", completed.Load())
	}
}
