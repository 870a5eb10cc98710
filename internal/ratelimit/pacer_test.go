package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_UnlimitedBudget(t *testing.T) {
	t.Parallel()

	pacer := New(0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("unlimited pacer blocked for %v", elapsed)
	}
}

func TestWait_NilPacer(t *testing.T) {
	t.Parallel()

	var pacer *Pacer
	if err := pacer.Wait(context.Background()); err != nil {
		t.Fatalf("nil pacer should not block: %v", err)
	}
}

func TestWait_PacesConsecutiveCalls(t *testing.T) {
	t.Parallel()

	pacer := New(50)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// Burst 1 at 50 rps means the second and third calls each wait ~20ms.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected pacing between calls, finished in %v", elapsed)
	}
}

func TestWait_CancelledContext(t *testing.T) {
	t.Parallel()

	pacer := New(0.001)
	ctx, cancel := context.WithCancel(context.Background())

	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("first slot should be free: %v", err)
	}

	cancel()
	if err := pacer.Wait(ctx); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}
