package ratelimit

import (
	"testing"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

func TestTryAcquire_UnregisteredKeyAlwaysSucceeds(t *testing.T) {
	r := NewRegistry()
	g, err := r.TryAcquire("ghost", "model", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Release() // must not panic on an empty guard
}

func TestTryAcquire_ConcurrencyCap(t *testing.T) {
	r := NewRegistry()
	r.Register(Key("claude", "opus"), Limits{Concurrent: 2})

	now := time.Now()
	g1, err := r.TryAcquire("claude", "opus", now)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	g2, err := r.TryAcquire("claude", "opus", now)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if _, err := r.TryAcquire("claude", "opus", now); err == nil {
		t.Fatal("expected third acquire to be denied")
	}

	g1.Release()
	g3, err := r.TryAcquire("claude", "opus", now)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	g2.Release()
	g3.Release()
}

func TestTryAcquire_RPSWindow(t *testing.T) {
	r := NewRegistry()
	r.Register(Key("claude", "opus"), Limits{RPS: 2})

	base := time.Now()
	if _, err := r.TryAcquire("claude", "opus", base); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := r.TryAcquire("claude", "opus", base.Add(10*time.Millisecond)); err != nil {
		t.Fatalf("second: %v", err)
	}
	if _, err := r.TryAcquire("claude", "opus", base.Add(20*time.Millisecond)); err == nil {
		t.Fatal("expected third request within the same second to be denied")
	}

	// Once the window rolls fully past, the slot is available again.
	if _, err := r.TryAcquire("claude", "opus", base.Add(1100*time.Millisecond)); err != nil {
		t.Fatalf("after window elapses: %v", err)
	}
}

func TestTryAcquire_DenialLeavesStateUnchanged(t *testing.T) {
	r := NewRegistry()
	r.Register(Key("claude", "opus"), Limits{RPS: 1})

	base := time.Now()
	if _, err := r.TryAcquire("claude", "opus", base); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Repeated denials at the same instant must not further consume state;
	// the window should still contain exactly the one recorded hit.
	for i := 0; i < 5; i++ {
		if _, err := r.TryAcquire("claude", "opus", base.Add(5*time.Millisecond)); err == nil {
			t.Fatal("expected denial")
		}
	}
	if _, err := r.TryAcquire("claude", "opus", base.Add(1100*time.Millisecond)); err != nil {
		t.Fatalf("expected the single window slot to be free once it rolls over: %v", err)
	}
}

func TestTryAcquire_RPMDenialRollsBackOnlyConcurrency(t *testing.T) {
	r := NewRegistry()
	r.Register(Key("claude", "opus"), Limits{Concurrent: 5, RPM: 1})

	base := time.Now()
	if _, err := r.TryAcquire("claude", "opus", base); err != nil {
		t.Fatalf("first: %v", err)
	}

	g, err := r.TryAcquire("claude", "opus", base.Add(time.Millisecond))
	if err == nil {
		g.Release()
		t.Fatal("expected RPM denial on the second call")
	}
	rlErr, ok := err.(*apierr.Error)
	if !ok || rlErr.Kind != apierr.KindRateLimited {
		t.Fatalf("expected a RateLimited error, got %v", err)
	}

	// The concurrency slot the denied call acquired must have been rolled
	// back: all 5 slots should still be independently acquirable.
	var guards []*Guard
	for i := 0; i < 5; i++ {
		gg, err := r.TryAcquire("claude", "opus", base.Add(2*time.Millisecond))
		if err != nil {
			t.Fatalf("acquire %d after rollback: %v", i, err)
		}
		guards = append(guards, gg)
	}
	for _, gg := range guards {
		gg.Release()
	}
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(Key("claude", "opus"), Limits{Concurrent: 1})

	g, err := r.TryAcquire("claude", "opus", time.Now())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	g.Release()
	g.Release() // must not double-release the semaphore

	g2, err := r.TryAcquire("claude", "opus", time.Now())
	if err != nil {
		t.Fatalf("reacquire after idempotent release: %v", err)
	}
	g2.Release()
}
