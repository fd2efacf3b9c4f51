package iocoalesce

import (
	"errors"
	"testing"
)

func TestNewPoolRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := NewPool(capacity, nil)
		if err == nil {
			t.Errorf("NewPool(%d) succeeded, want error", capacity)
			continue
		}
		if !IsCode(err, ErrCodeInvalidParameters) {
			t.Errorf("NewPool(%d) error code = %v, want invalid parameters", capacity, err)
		}
		if !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("NewPool(%d) error does not match sentinel", capacity)
		}
	}
}

func TestPoolAccounting(t *testing.T) {
	p := newTestPool(t, 8)

	if p.Capacity() != 8 {
		t.Errorf("Capacity = %d, want 8", p.Capacity())
	}
	if p.Available() != 8 {
		t.Errorf("Available = %d, want 8", p.Available())
	}

	batch := ContiguousBatch(1, OpRead, 0, 512, 3)
	merged := p.Merge(batch)
	if merged != 1 {
		t.Fatalf("Merge = %d heads, want 1", merged)
	}
	if p.Available() != 5 {
		t.Errorf("Available = %d after merging a run of 3, want 5", p.Available())
	}

	p.Split([]Completion{{Req: batch[0], Res: 1536}})
	if p.Available() != 8 {
		t.Errorf("Available = %d after splitting, want 8", p.Available())
	}

	snap := p.Metrics().Snapshot()
	if snap.PoolAllocs != 3 || snap.PoolReleases != 3 {
		t.Errorf("allocs=%d releases=%d, want 3 and 3", snap.PoolAllocs, snap.PoolReleases)
	}
}

func TestPoolSlotReuse(t *testing.T) {
	p := newTestPool(t, 4)

	// Wrappers must cycle cleanly through repeated merge/split rounds on a
	// pool sized for exactly one round.
	for round := 0; round < 10; round++ {
		batch := ContiguousBatch(1, OpRead, 0, 512, 4)
		if merged := p.Merge(batch); merged != 1 {
			t.Fatalf("round %d: Merge = %d heads, want 1", round, merged)
		}
		out := p.Split([]Completion{{Req: batch[0], Res: 2048}})
		if len(out) != 4 {
			t.Fatalf("round %d: Split = %d completions, want 4", round, len(out))
		}
		if p.Available() != 4 {
			t.Fatalf("round %d: Available = %d, want 4", round, p.Available())
		}
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p, err := NewPool(4, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Close()
	p.Close()
}

func TestPoolIndependentInstances(t *testing.T) {
	p1 := newTestPool(t, 4)
	p2 := newTestPool(t, 4)

	batch := ContiguousBatch(1, OpRead, 0, 512, 2)
	if merged := p1.Merge(batch); merged != 1 {
		t.Fatalf("Merge = %d heads, want 1", merged)
	}

	if p2.Available() != 4 {
		t.Error("pools must not share wrapper storage")
	}
	if p2.Metrics().Snapshot().PoolAllocs != 0 {
		t.Error("pools must not share metrics")
	}

	p1.Expand(batch[:1], 0)
}
