//go:build !integration

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool_SameKeyRunsInOrder(t *testing.T) {
	nop := zerolog.Nop()
	p := NewPool(4, &nop)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	const n = 10
	var (
		mu   sync.Mutex
		got  []int
		done = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		i := i
		err := p.Submit(42, func(ctx context.Context) error {
			mu.Lock()
			got = append(got, i)
			full := len(got) == n
			mu.Unlock()
			if full {
				close(done)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("task order %v, want ascending", got)
		}
	}
}

func TestPool_SameKeyNeverOverlaps(t *testing.T) {
	nop := zerolog.Nop()
	p := NewPool(8, &nop)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var (
		inFlight int32
		overlaps int32
		wg       sync.WaitGroup
	)
	// All tasks share one key. If two ever run at once the per-user
	// serialization the conversation flow relies on is gone.
	for i := 0; i < 12; i++ {
		wg.Add(1)
		err := p.Submit(7, func(ctx context.Context) error {
			defer wg.Done()
			if atomic.AddInt32(&inFlight, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()
	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Fatalf("%d tasks with the same key ran concurrently", n)
	}
}

func TestPool_DistinctKeysRunConcurrently(t *testing.T) {
	nop := zerolog.Nop()
	p := NewPool(4, &nop)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	release := make(chan struct{})
	var started int32
	var wg sync.WaitGroup
	for key := int64(0); key < 4; key++ {
		wg.Add(1)
		if err := p.Submit(key, func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&started, 1)
			<-release
			return nil
		}); err != nil {
			t.Fatalf("submit key %d: %v", key, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&started) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 4 keyed tasks started", atomic.LoadInt32(&started))
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
}

func TestPool_SaturatedLaneDrops(t *testing.T) {
	nop := zerolog.Nop()
	p := NewPool(1, &nop)
	// Not started: the lane buffer fills and the next submit must fail
	// instead of blocking the caller.
	blocked := func(ctx context.Context) error { return nil }
	var err error
	for i := 0; i < 16; i++ {
		if err = p.Submit(1, blocked); err != nil {
			t.Fatalf("submit %d into empty lane: %v", i, err)
		}
	}
	if err = p.Submit(1, blocked); err == nil {
		t.Fatal("expected a full lane to reject the task")
	}
}

func TestPool_NegativeKeyRoutes(t *testing.T) {
	nop := zerolog.Nop()
	p := NewPool(3, &nop)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	done := make(chan struct{})
	if err := p.Submit(-9, func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task with negative key never ran")
	}
}
