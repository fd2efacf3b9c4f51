package iocoalesce

import "fmt"

// Expand reverses merging for batch[idx:] without completion data, for
// cancellation or resubmission paths. Unmanaged entries pass through
// unchanged; each run head is replaced by its members in original
// submission order, every member's live Request restored to its pre-merge
// form and its wrapper released.
//
// The expanded batch is written from the front of the caller's slice (a
// frozen scratch copy makes the aliasing safe) and returned; it grows past
// the input length whenever a run expands, so the caller must use the
// return value.
func (p *Pool) Expand(batch []*Request, idx int) []*Request {
	src := batch[idx:]
	if len(src) == 0 {
		return batch[:0]
	}

	if len(src) > len(p.reqQueue) {
		panic(fmt.Sprintf("iocoalesce: expand batch of %d exceeds pool capacity %d", len(src), len(p.reqQueue)))
	}

	q := p.reqQueue[:len(src)]
	copy(q, src)

	out := batch[:0]
	for _, r := range q {
		if !r.Managed() {
			out = append(out, r)
			continue
		}
		out = p.expandRun(r, out)
	}

	p.metrics.ExpandCalls.Add(1)
	p.metrics.RequestsExpanded.Add(uint64(len(out)))
	if p.observer != nil {
		p.observer.ObserveExpand(uint64(len(src)), uint64(len(out)))
	}
	return out
}

// expandRun walks a run head to tail, restoring and releasing each member.
func (p *Pool) expandRun(head *Request, out []*Request) []*Request {
	hIdx, _ := p.wrapperOf(head)

	var length uint64
	for i := hIdx; i != noSlot; {
		w := p.at(i)
		next := w.next
		w.restore()
		out = append(out, w.req)
		p.release(i)
		i = next
		length++
	}

	p.metrics.recordRun(length, RunExpanded)
	if p.observer != nil {
		p.observer.ObserveRun(length, RunExpanded)
	}
	return out
}
