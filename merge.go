package iocoalesce

// Merge folds contiguous, compatible requests in batch into vectorized
// runs. The batch must be presented in ascending, potentially-contiguous
// order; Merge never sorts or reorders, it only tests adjacency between
// the current run head and each subsequent entry.
//
// The caller's slice is rewritten in place to contain only the surviving
// run heads (requests that never merged pass through untouched) and the
// head count is returned. Entries past the returned count are stale.
//
// Pool exhaustion mid-merge is absorbed: the pair simply does not merge
// and the candidate starts a new run. A batch larger than the pool's
// scratch capacity is a caller sizing error; Merge then performs no
// merging at all and returns the batch unchanged.
func (p *Pool) Merge(batch []*Request) int {
	n := len(batch)
	if n == 0 {
		return 0
	}

	if n > len(p.reqQueue) {
		if p.logger != nil {
			p.logger.Warnf("merge: batch of %d exceeds pool capacity %d, not merging", n, len(p.reqQueue))
		}
		p.recordMerge(n, n)
		return n
	}

	q := p.reqQueue[:n]
	copy(q, batch)

	onQueue := 0
	for i := 1; i < n; i++ {
		r := q[i]
		if !p.merge(batch[onQueue], r) {
			onQueue++
			batch[onQueue] = r
		}
	}

	out := onQueue + 1
	p.recordMerge(n, out)
	p.traceMerged(batch[:out])
	return out
}

// merge decides whether r can join head's run and performs the merge when
// it can. A false return is the normal "start a new run" outcome, covering
// both incompatibility and pool exhaustion.
func (p *Pool) merge(head, r *Request) bool {
	if head.Op.Vectored() != r.Op.Vectored() {
		return false
	}

	// Members must be scalar. A vectored request built by the caller is
	// never folded into a run, in either role: the engine only converts
	// scalar heads, so an unmanaged vectored head has no wrapper to chain
	// from.
	if r.Op.isVectored() {
		return false
	}
	if head.Op.isVectored() && !head.Managed() {
		return false
	}

	// Zero-length entries would corrupt the run's byte accounting.
	if len(r.Buf) == 0 || (!head.Managed() && len(head.Buf) == 0) {
		return false
	}

	if !head.contiguous(r) {
		return false
	}

	// A run at vector capacity would overflow the wrapper's entry array.
	if head.Managed() && len(head.Vec) == MaxVectorEntries {
		return false
	}

	return p.mergeTail(head, r)
}

// mergeTail materializes the wrappers and appends r to head's run.
func (p *Pool) mergeTail(head, r *Request) bool {
	var hIdx int32
	freshHead := false

	if head.Managed() {
		hIdx, _ = p.wrapperOf(head)
	} else {
		hIdx = p.attach(head)
		if hIdx == noSlot {
			return false
		}
		freshHead = true
	}

	mIdx := p.attach(r)
	if mIdx == noSlot {
		// Undo a head wrapper created for this failed pair so it cannot
		// leak; an established head keeps its run.
		if freshHead {
			w := p.at(hIdx)
			w.restore()
			p.release(hIdx)
		}
		return false
	}

	hw := p.at(hIdx)

	if !head.Op.isVectored() {
		// First merge into this head: convert it in place to a
		// single-entry vectored request over the wrapper's entry array.
		// Fd, Offset and the caller's opaque Tag ride through untouched.
		hw.vec[0] = head.Buf
		head.Op = head.Op.Vectored()
		head.Vec = hw.vec[:1]
		head.Buf = nil
	}

	cnt := len(head.Vec)
	hw.vec[cnt] = r.Buf
	head.Vec = hw.vec[:cnt+1]

	// O(1) chain append through the head's tail link; chain order is
	// append order, which is original submission order.
	p.wrappers[hw.tail].next = mIdx
	hw.tail = mIdx

	p.metrics.RequestsFolded.Add(1)
	return true
}

func (p *Pool) recordMerge(in, out int) {
	p.metrics.MergeCalls.Add(1)
	p.metrics.RequestsIn.Add(uint64(in))
	p.metrics.HeadsOut.Add(uint64(out))
	if p.observer != nil {
		p.observer.ObserveMerge(uint64(in), uint64(out))
	}
}
