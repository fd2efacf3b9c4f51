package iocoalesce

import (
	"testing"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	p, err := NewPool(capacity, nil)
	if err != nil {
		t.Fatalf("NewPool(%d) failed: %v", capacity, err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestMergeEmptyBatch(t *testing.T) {
	p := newTestPool(t, 16)

	if got := p.Merge(nil); got != 0 {
		t.Errorf("Merge(nil) = %d, want 0", got)
	}
	if got := p.Merge([]*Request{}); got != 0 {
		t.Errorf("Merge(empty) = %d, want 0", got)
	}
}

func TestMergeContiguousReads(t *testing.T) {
	p := newTestPool(t, 16)

	// Three contiguous same-handle 512-byte reads at offsets 0, 512, 1024
	batch := ContiguousBatch(1, OpRead, 0, 512, 3)
	head := batch[0]

	merged := p.Merge(batch)
	if merged != 1 {
		t.Fatalf("Merge = %d heads, want 1", merged)
	}

	if batch[0] != head {
		t.Error("surviving head is not the first request")
	}
	if head.Op != OpReadv {
		t.Errorf("head opcode = %s, want readv", head.Op)
	}
	if len(head.Vec) != 3 {
		t.Errorf("head has %d vector entries, want 3", len(head.Vec))
	}
	if head.Nbytes() != 1536 {
		t.Errorf("head Nbytes = %d, want 1536", head.Nbytes())
	}
	if head.Offset != 0 {
		t.Errorf("head offset = %d, want 0", head.Offset)
	}
	if !head.Managed() {
		t.Error("head is not engine-managed after merge")
	}

	// The head's opaque tag must survive the in-place rewrite
	if head.Tag != 0 {
		t.Errorf("head tag = %v, want 0", head.Tag)
	}
}

func TestMergeGapStartsNewRun(t *testing.T) {
	p := newTestPool(t, 16)

	a := NewReadRequest(1, 0, make([]byte, 512))
	b := NewReadRequest(1, 1024, make([]byte, 512)) // gap: 512..1024 missing
	batch := []*Request{a, b}

	merged := p.Merge(batch)
	if merged != 2 {
		t.Fatalf("Merge = %d heads, want 2", merged)
	}
	if batch[0] != a || batch[1] != b {
		t.Error("surviving heads are not the original requests")
	}
	if a.Managed() || b.Managed() {
		t.Error("non-merged requests must stay untouched")
	}
	if a.Op != OpRead || b.Op != OpRead {
		t.Error("non-merged requests must keep their opcode")
	}

	snap := p.Metrics().Snapshot()
	if snap.PoolAllocs != 0 {
		t.Errorf("pool allocs = %d, want 0 for a no-merge batch", snap.PoolAllocs)
	}
}

func TestMergeOverlapStartsNewRun(t *testing.T) {
	p := newTestPool(t, 16)

	a := NewReadRequest(1, 0, make([]byte, 1024))
	b := NewReadRequest(1, 512, make([]byte, 512)) // overlaps a's tail
	batch := []*Request{a, b}

	if merged := p.Merge(batch); merged != 2 {
		t.Errorf("Merge = %d heads, want 2", merged)
	}
}

func TestMergeIncompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b *Request
	}{
		{
			name: "different handles",
			a:    NewReadRequest(1, 0, make([]byte, 512)),
			b:    NewReadRequest(2, 512, make([]byte, 512)),
		},
		{
			name: "read then write",
			a:    NewReadRequest(1, 0, make([]byte, 512)),
			b:    NewWriteRequest(1, 512, make([]byte, 512)),
		},
		{
			name: "write then read",
			a:    NewWriteRequest(1, 0, make([]byte, 512)),
			b:    NewReadRequest(1, 512, make([]byte, 512)),
		},
		{
			name: "zero-length candidate",
			a:    NewReadRequest(1, 0, make([]byte, 512)),
			b:    NewReadRequest(1, 512, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool(t, 16)
			batch := []*Request{tt.a, tt.b}
			if merged := p.Merge(batch); merged != 2 {
				t.Errorf("Merge = %d heads, want 2", merged)
			}
		})
	}
}

func TestMergeMixedOpsSameDirection(t *testing.T) {
	p := newTestPool(t, 16)

	// Contiguous writes merge independently of the preceding read run
	batch := []*Request{
		NewReadRequest(1, 0, make([]byte, 512)),
		NewReadRequest(1, 512, make([]byte, 512)),
		NewWriteRequest(1, 1024, make([]byte, 512)),
		NewWriteRequest(1, 1536, make([]byte, 512)),
	}

	merged := p.Merge(batch)
	if merged != 2 {
		t.Fatalf("Merge = %d heads, want 2", merged)
	}
	if batch[0].Op != OpReadv {
		t.Errorf("first head opcode = %s, want readv", batch[0].Op)
	}
	if batch[1].Op != OpWritev {
		t.Errorf("second head opcode = %s, want writev", batch[1].Op)
	}
}

func TestMergeVectorCapacityBound(t *testing.T) {
	p := newTestPool(t, 32)

	// More contiguous requests than one run can hold
	batch := ContiguousBatch(1, OpRead, 0, 512, MaxVectorEntries+2)

	merged := p.Merge(batch)
	if merged != 2 {
		t.Fatalf("Merge = %d heads, want 2", merged)
	}
	if len(batch[0].Vec) != MaxVectorEntries {
		t.Errorf("first run has %d entries, want %d", len(batch[0].Vec), MaxVectorEntries)
	}
	if len(batch[1].Vec) != 2 {
		t.Errorf("second run has %d entries, want 2", len(batch[1].Vec))
	}
}

func TestMergeCallerVectoredPassesThrough(t *testing.T) {
	p := newTestPool(t, 16)

	vec := &Request{
		Fd:     1,
		Op:     OpReadv,
		Offset: 0,
		Vec:    [][]byte{make([]byte, 512)},
	}
	scalar := NewReadRequest(1, 512, make([]byte, 512))
	batch := []*Request{vec, scalar}

	if merged := p.Merge(batch); merged != 2 {
		t.Errorf("Merge = %d heads, want 2: caller-vectored requests never merge", merged)
	}
}

func TestMergePoolExhaustionDegrades(t *testing.T) {
	// Three wrappers: the first run consumes two and stays in flight, so
	// the second pair gets a head wrapper but no member wrapper.
	p := newTestPool(t, 3)

	first := ContiguousBatch(1, OpRead, 0, 512, 2)
	if merged := p.Merge(first); merged != 1 {
		t.Fatalf("first Merge = %d heads, want 1", merged)
	}

	second := ContiguousBatch(2, OpRead, 0, 512, 2)
	merged := p.Merge(second)
	if merged != 2 {
		t.Fatalf("second Merge = %d heads, want 2", merged)
	}

	// The failed pair must be fully unwound: the head wrapper created for
	// it cannot leak, and both requests keep their original form.
	for i, r := range second {
		if r.Managed() {
			t.Errorf("request %d still managed after failed merge", i)
		}
		if r.Op != OpRead {
			t.Errorf("request %d opcode = %s, want read", i, r.Op)
		}
	}

	snap := p.Metrics().Snapshot()
	if snap.PoolExhaustions == 0 {
		t.Error("expected a pool exhaustion to be recorded")
	}
	if snap.PoolInUse != 2 {
		t.Errorf("wrappers in use = %d, want 2 (the surviving run)", snap.PoolInUse)
	}

	// Releasing the surviving run returns the pool to full capacity.
	out := p.Expand(first[:1], 0)
	if len(out) != 2 {
		t.Fatalf("Expand = %d requests, want 2", len(out))
	}
	if p.Available() != p.Capacity() {
		t.Errorf("available = %d, want %d after expanding every run",
			p.Available(), p.Capacity())
	}
}

func TestMergeOversizedBatchRefused(t *testing.T) {
	p := newTestPool(t, 4)

	batch := ContiguousBatch(1, OpRead, 0, 512, 8)
	merged := p.Merge(batch)
	if merged != 8 {
		t.Fatalf("Merge = %d heads, want 8 (no merging past scratch capacity)", merged)
	}
	for i, r := range batch {
		if r.Managed() {
			t.Errorf("request %d managed after refused merge", i)
		}
	}
}

func TestMergeSoundness(t *testing.T) {
	// After merging, consecutive surviving heads must be unmergeable:
	// different handle, non-contiguous, or the first at vector capacity.
	p := newTestPool(t, 64)

	batch := []*Request{}
	batch = append(batch, ContiguousBatch(1, OpRead, 0, 512, 10)...)
	batch = append(batch, ContiguousBatch(1, OpRead, 1<<20, 4096, 3)...)
	batch = append(batch, ContiguousBatch(2, OpRead, 0, 512, 2)...)

	merged := p.Merge(batch)
	for i := 1; i < merged; i++ {
		l, r := batch[i-1], batch[i]
		if l.Fd != r.Fd {
			continue
		}
		if l.Offset+l.Nbytes() != r.Offset {
			continue
		}
		if l.Op.isVectored() && len(l.Vec) == MaxVectorEntries {
			continue
		}
		if l.Op.Vectored() != r.Op.Vectored() {
			continue
		}
		t.Errorf("heads %d and %d are still mergeable", i-1, i)
	}
}
