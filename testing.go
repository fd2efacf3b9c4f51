package iocoalesce

import "sync"

// Test helpers for applications building request batches and for verifying
// observer wiring. These are exported so consumers can use them in their
// own tests.

// NewReadRequest builds a scalar read request over buf.
func NewReadRequest(fd int32, offset int64, buf []byte) *Request {
	return &Request{Fd: fd, Op: OpRead, Offset: offset, Buf: buf}
}

// NewWriteRequest builds a scalar write request over buf.
func NewWriteRequest(fd int32, offset int64, buf []byte) *Request {
	return &Request{Fd: fd, Op: OpWrite, Offset: offset, Buf: buf}
}

// ContiguousBatch builds count scalar requests of the given length, laid
// out back to back starting at offset start, each tagged with its index.
func ContiguousBatch(fd int32, op Opcode, start int64, length, count int) []*Request {
	batch := make([]*Request, count)
	offset := start
	for i := 0; i < count; i++ {
		batch[i] = &Request{
			Fd:     fd,
			Op:     op,
			Offset: offset,
			Buf:    make([]byte, length),
			Tag:    i,
		}
		offset += int64(length)
	}
	return batch
}

// RecordingObserver is an Observer that records every call for test
// verification.
type RecordingObserver struct {
	mu sync.Mutex

	MergeCalls  int
	ExpandCalls int
	SplitCalls  int
	Runs        []RecordedRun
	Exhaustions int
}

// RecordedRun is one ObserveRun call.
type RecordedRun struct {
	Length  uint64
	Outcome RunOutcome
}

func (o *RecordingObserver) ObserveMerge(requestsIn, headsOut uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.MergeCalls++
}

func (o *RecordingObserver) ObserveExpand(entriesIn, requestsOut uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ExpandCalls++
}

func (o *RecordingObserver) ObserveSplit(completionsIn, completionsOut uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.SplitCalls++
}

func (o *RecordingObserver) ObserveRun(length uint64, outcome RunOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Runs = append(o.Runs, RecordedRun{Length: length, Outcome: outcome})
}

func (o *RecordingObserver) ObservePoolExhausted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Exhaustions++
}

// Compile-time interface check
var _ Observer = (*RecordingObserver)(nil)
