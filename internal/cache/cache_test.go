package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Hour, clock, nil)
	ctx := context.Background()

	var calls atomic.Int64
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "payload", nil
	}

	got, cached, err := c.GetOrCompute(ctx, "Nairobi", compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if cached {
		t.Error("first lookup must be a miss")
	}
	if got != "payload" {
		t.Errorf("unexpected payload %v", got)
	}

	// Key normalization: different spelling, same entry.
	got, cached, err = c.GetOrCompute(ctx, "  nairobi ", compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if !cached {
		t.Error("second lookup must be a hit")
	}
	if got != "payload" {
		t.Errorf("unexpected payload %v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected compute to run once, ran %d times", calls.Load())
	}
}

func TestGetOrCompute_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Hour, clock, nil)
	ctx := context.Background()

	var calls atomic.Int64
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return calls.Load(), nil
	}

	if _, _, err := c.GetOrCompute(ctx, "kitui", compute); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	clock.Advance(time.Hour + time.Second)

	got, cached, err := c.GetOrCompute(ctx, "kitui", compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if cached {
		t.Error("expired entry must not be served")
	}
	if got != int64(2) {
		t.Errorf("expected recomputed payload, got %v", got)
	}
}

func TestGetOrCompute_FailuresNotStored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Hour, clock, nil)
	ctx := context.Background()

	boom := errors.New("upstream down")
	fails := true
	compute := func(ctx context.Context) (any, error) {
		if fails {
			return nil, boom
		}
		return "recovered", nil
	}

	if _, _, err := c.GetOrCompute(ctx, "kitui", compute); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("a failed compute must not be cached")
	}

	fails = false
	got, cached, err := c.GetOrCompute(ctx, "kitui", compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if cached {
		t.Error("expected a fresh compute after the failure")
	}
	if got != "recovered" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestGetOrCompute_ConcurrentMissesShareOneCompute(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Hour, clock, nil)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			got, _, err := c.GetOrCompute(ctx, "nakuru", compute)
			if err != nil {
				t.Errorf("GetOrCompute failed: %v", err)
				return
			}
			if got != "shared" {
				t.Errorf("unexpected payload %v", got)
			}
		}()
	}

	for i := 0; i < workers; i++ {
		<-started
	}
	// Give the goroutines a beat to pile onto the singleflight before the
	// in-flight compute completes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one shared compute, got %d", calls.Load())
	}
}
