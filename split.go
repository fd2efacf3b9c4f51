package iocoalesce

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// genericIOError is propagated to every member of a run whose completion
// reports a short, non-error transfer. The kernel gives no per-entry
// breakdown for a vectored request, so the engine cannot attribute which
// member(s) actually failed and degrades the whole run instead of guessing.
var genericIOError = -int64(unix.EIO)

// Split consumes a completion batch for a previously merged (and submitted)
// batch and attributes a result to each original member request.
//
// Completions for unmanaged requests copy through unchanged. For a run
// head, the completion's result is compared to the run's total requested
// length:
//
//   - equal: every member receives a success completion carrying its own
//     originally-requested length;
//   - negative: that exact error code is propagated to every member;
//   - short but non-negative: every member receives the generic I/O error.
//
// Member completions are emitted in original submission order, interleaved
// in scan order with pass-through completions. Each member's live Request
// is restored to its pre-merge form and its wrapper released, mirroring
// Expand. The expanded batch is written over the caller's slice and
// returned; the caller must use the return value.
func (p *Pool) Split(events []Completion) []Completion {
	n := len(events)
	if n == 0 {
		return events[:0]
	}

	if n > len(p.evQueue) {
		panic(fmt.Sprintf("iocoalesce: split batch of %d exceeds pool capacity %d", n, len(p.evQueue)))
	}

	q := p.evQueue[:n]
	copy(q, events)

	out := events[:0]
	for _, ev := range q {
		if ev.Req == nil || !ev.Req.Managed() {
			out = append(out, ev)
			continue
		}
		out = p.splitRun(ev, out)
	}

	p.metrics.SplitCalls.Add(1)
	p.metrics.CompletionsIn.Add(uint64(n))
	p.metrics.CompletionsOut.Add(uint64(len(out)))
	if p.observer != nil {
		p.observer.ObserveSplit(uint64(n), uint64(len(out)))
	}
	p.traceCompletions(out)
	return out
}

// splitRun fans a run head's completion out to its members.
func (p *Pool) splitRun(ev Completion, out []Completion) []Completion {
	head := ev.Req
	hIdx, _ := p.wrapperOf(head)
	requested := head.Nbytes()

	var errRes int64
	outcome := RunFull
	switch {
	case ev.Res == requested:
		errRes = 0
	case ev.Res < 0:
		errRes = ev.Res
		outcome = RunError
	default:
		errRes = genericIOError
		outcome = RunPartial
	}

	if p.logger != nil {
		p.logger.Debugf("split: head fd=%d off=%d requested=%d res=%d outcome=%s",
			head.Fd, head.Offset, requested, ev.Res, outcome)
	}

	var length uint64
	for i := hIdx; i != noSlot; {
		w := p.at(i)
		next := w.next

		res := errRes
		if res == 0 {
			res = w.orig.Nbytes() // the member's own length, not a share
		}
		out = append(out, Completion{Req: w.req, Res: res})

		w.restore()
		p.release(i)
		i = next
		length++
	}

	p.metrics.recordRun(length, outcome)
	if p.observer != nil {
		p.observer.ObserveRun(length, outcome)
	}
	return out
}
