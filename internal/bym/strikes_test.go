package bym_test

import (
	"sync"
	"testing"

	"github.com/edgard/bymbot/internal/bym"
)

func TestStrikeRegistry(t *testing.T) {
	t.Parallel()

	r := bym.NewStrikeRegistry()
	if got := r.Decay(1); got != 0 {
		t.Errorf("Decay() on absent user = %d, want 0", got)
	}
	if r.Has(1) {
		t.Error("Has() = true after decaying an absent user")
	}

	r.Strike(1)
	if got := r.Strike(1); got != 2 {
		t.Errorf("Strike() = %d, want 2", got)
	}
	if got := r.Decay(1); got != 1 {
		t.Errorf("Decay() = %d, want 1", got)
	}
	if got := r.Decay(1); got != 0 {
		t.Errorf("Decay() = %d, want 0", got)
	}
	if r.Has(1) {
		t.Error("Has() = true, want entry removed at zero")
	}
	if got := r.Decay(1); got != 0 {
		t.Errorf("Decay() below zero = %d, want 0", got)
	}

	r.Strike(2)
	r.Strike(3)
	if got := len(r.Snapshot()); got != 2 {
		t.Errorf("len(Snapshot()) = %d, want 2", got)
	}
	if got := r.Reset(); got != 2 {
		t.Errorf("Reset() = %d, want 2", got)
	}
	if got := r.Count(2); got != 0 {
		t.Errorf("Count() after reset = %d, want 0", got)
	}
}

func TestStrikeRegistryNeverNegative(t *testing.T) {
	t.Parallel()

	r := bym.NewStrikeRegistry()
	ops := []bool{true, false, false, true, true, false, false, false, true, false}
	for i, strike := range ops {
		if strike {
			r.Strike(7)
		} else {
			r.Decay(7)
		}
		if got := r.Count(7); got < 0 {
			t.Fatalf("step %d: Count() = %d, want >= 0", i, got)
		}
		if r.Count(7) == 0 && r.Has(7) {
			t.Fatalf("step %d: zero-count entry kept", i)
		}
	}
}

func TestStrikeRegistryConcurrent(t *testing.T) {
	t.Parallel()

	r := bym.NewStrikeRegistry()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Strike(9)
		}()
	}
	wg.Wait()
	if got := r.Count(9); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}
}
