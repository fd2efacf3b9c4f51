package iocoalesce

import "fmt"

// Logger is the diagnostic sink injected via Options. It is used only for
// tracing merge/split decisions and never affects control flow.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// traceRequest renders one request's state at debug level.
func (p *Pool) traceRequest(prefix string, r *Request) {
	if p.logger == nil {
		return
	}

	if r.Op.isVectored() {
		p.logger.Debugf("%soff: %08x, type: %s, tag: %v, managed: %v",
			prefix, r.Offset, r.Op, r.Tag, r.Managed())
		for _, v := range r.Vec {
			p.logger.Debugf("%s\tnbytes: %04x", prefix, len(v))
		}
		return
	}

	p.logger.Debugf("%soff: %08x, nbytes: %04x, type: %s, tag: %v, managed: %v",
		prefix, r.Offset, len(r.Buf), r.Op, r.Tag, r.Managed())
}

// traceMerged renders the surviving heads of a merged batch, with run
// members indented beneath their head.
func (p *Pool) traceMerged(batch []*Request) {
	if p.logger == nil {
		return
	}

	p.logger.Debugf("merged batch:")
	cnt := 0
	for _, r := range batch {
		p.traceRequest(fmt.Sprintf("%d: ", cnt), r)
		cnt++

		if !r.Managed() {
			continue
		}
		hIdx, _ := p.wrapperOf(r)
		for i := p.at(hIdx).next; i != noSlot; i = p.at(i).next {
			p.traceRequest(fmt.Sprintf("  %d: ", cnt), p.at(i).req)
			cnt++
		}
	}
}

// traceCompletions renders a completion batch at debug level.
func (p *Pool) traceCompletions(events []Completion) {
	if p.logger == nil {
		return
	}

	for i := range events {
		p.logger.Debugf("completion %d: res=%d", i, events[i].Res)
		if events[i].Req != nil {
			p.traceRequest("  ", events[i].Req)
		}
	}
}
