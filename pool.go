package iocoalesce

import "fmt"

// wrapperMagic marks a live, engine-managed wrapper slot. Any access to a
// slot whose magic does not match is an internal bookkeeping bug, not a
// recoverable condition.
const wrapperMagic uint32 = 0x6f70696f

// noSlot terminates a wrapper chain.
const noSlot int32 = -1

// wrapper is the per-request metadata created when a Request first
// participates in merging. Wrappers live in the pool arena and reference
// each other by slot index, forming an intrusive singly-linked chain
// rooted at the run head.
type wrapper struct {
	magic uint32
	orig  Request  // verbatim copy of the request before any merge rewrite
	req   *Request // the live request this wrapper shadows

	// vec backs the head request's scatter/gather list. Only the run head
	// uses it; member wrappers leave it empty.
	vec [MaxVectorEntries][]byte

	next int32 // arena index of the next chain member, noSlot at the tail
	tail int32 // head only: arena index of the last-appended member
}

// Options configures optional pool collaborators.
type Options struct {
	// Logger receives merge/split traces. A nil logger disables tracing;
	// it never affects control flow.
	Logger Logger

	// Observer receives engine events in addition to the pool's own
	// Metrics. Optional.
	Observer Observer
}

// Pool is a fixed-capacity allocator for request wrappers plus the scratch
// storage the engine needs to rewrite caller batches in place.
//
// A Pool is not safe for concurrent use; the intended usage is one Pool per
// worker or event-loop context, called strictly in the sequence
// Merge -> (submit externally) -> Split, or Merge -> Expand when a batch is
// abandoned before submission.
type Pool struct {
	wrappers []wrapper
	free     []int32 // LIFO stack of free slot indices

	// reqQueue and evQueue hold stable snapshots of the caller's batch so
	// Merge/Expand/Split can overwrite the live slice while iterating a
	// frozen copy.
	reqQueue []*Request
	evQueue  []Completion

	logger   Logger
	observer Observer
	metrics  *Metrics
}

// NewPool creates a pool with the given wrapper capacity. Capacity must be
// at least the largest batch the caller will ever present; a batch that
// needs more wrappers than the pool holds is merged only partially (or,
// past the scratch capacity, not at all).
func NewPool(capacity int, options *Options) (*Pool, error) {
	if capacity <= 0 {
		return nil, NewError("NEW_POOL", ErrCodeInvalidParameters,
			fmt.Sprintf("capacity must be positive, got %d", capacity))
	}

	p := &Pool{
		wrappers: make([]wrapper, capacity),
		free:     make([]int32, capacity),
		reqQueue: make([]*Request, capacity),
		evQueue:  make([]Completion, capacity),
		metrics:  NewMetrics(),
	}

	for i := 0; i < capacity; i++ {
		p.free[i] = int32(i)
	}

	if options != nil {
		p.logger = options.Logger
		p.observer = options.Observer
	}

	return p, nil
}

// Capacity returns the number of wrapper slots the pool was created with.
func (p *Pool) Capacity() int {
	return len(p.wrappers)
}

// Available returns the number of free wrapper slots.
func (p *Pool) Available() int {
	return len(p.free)
}

// Metrics returns the pool's metrics instance.
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// Close releases the pool's backing storage. Idempotent; safe to call on a
// pool that failed to initialize fully. Using the pool after Close panics.
func (p *Pool) Close() {
	p.wrappers = nil
	p.free = nil
	p.reqQueue = nil
	p.evQueue = nil
}

// alloc pops one free slot. Returns noSlot when the pool is exhausted,
// which callers absorb as a do-not-merge outcome.
func (p *Pool) alloc() int32 {
	if len(p.free) == 0 {
		p.metrics.PoolExhaustions.Add(1)
		if p.observer != nil {
			p.observer.ObservePoolExhausted()
		}
		return noSlot
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.metrics.PoolAllocs.Add(1)
	return idx
}

// release zeroes a slot and pushes it back on the free list. Releasing a
// slot that is not live panics via the magic check.
func (p *Pool) release(idx int32) {
	w := &p.wrappers[idx]
	if w.magic != wrapperMagic {
		panic(fmt.Sprintf("iocoalesce: release of non-live wrapper slot %d", idx))
	}
	*w = wrapper{}
	p.free = append(p.free, idx)
	p.metrics.PoolReleases.Add(1)
}

// at returns the live wrapper in the given slot, validating the slot's
// magic and its back-reference. A violation is a programming defect in
// batch bookkeeping and panics.
func (p *Pool) at(idx int32) *wrapper {
	w := &p.wrappers[idx]
	if w.magic != wrapperMagic {
		panic(fmt.Sprintf("iocoalesce: wrapper slot %d is not live", idx))
	}
	return w
}

// wrapperOf resolves a managed request's wrapper, validating the handle
// and that the slot points back at the request.
func (p *Pool) wrapperOf(r *Request) (int32, *wrapper) {
	if r.wrapper == 0 {
		panic("iocoalesce: request is not engine-managed")
	}
	idx := r.wrapper - 1
	w := p.at(idx)
	if w.req != r {
		panic(fmt.Sprintf("iocoalesce: wrapper slot %d does not shadow this request", idx))
	}
	return idx, w
}

// attach allocates and initializes a wrapper for a request, saving the
// request's current form as the restoration snapshot. Returns noSlot on
// exhaustion.
func (p *Pool) attach(r *Request) int32 {
	idx := p.alloc()
	if idx == noSlot {
		return noSlot
	}

	w := &p.wrappers[idx]
	w.magic = wrapperMagic
	w.orig = *r // saved before the handle is set, so restore clears it
	w.req = r
	w.next = noSlot
	w.tail = idx

	r.wrapper = idx + 1
	return idx
}

// restore overwrites the wrapper's live request with the saved pre-merge
// copy, undoing any in-place rewrite. The saved copy predates the wrapper
// handle, so restoring also detaches the request from the pool.
func (w *wrapper) restore() {
	*w.req = w.orig
}
