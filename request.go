package iocoalesce

// Opcode identifies the I/O operation carried by a Request.
type Opcode uint8

const (
	OpRead Opcode = iota
	OpWrite
	OpReadv
	OpWritev
)

// String returns the short name used in traces.
func (op Opcode) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpReadv:
		return "readv"
	case OpWritev:
		return "writev"
	default:
		return "unknown"
	}
}

// Vectored maps an opcode to its canonical vectored form. Plain read and
// write map to readv/writev for compatibility testing; vectored opcodes
// map to themselves.
func (op Opcode) Vectored() Opcode {
	switch op {
	case OpRead:
		return OpReadv
	case OpWrite:
		return OpWritev
	default:
		return op
	}
}

// isVectored reports whether the opcode is a scatter/gather operation.
func (op Opcode) isVectored() bool {
	return op == OpReadv || op == OpWritev
}

// Request represents one caller I/O operation against a file handle.
//
// A scalar request (OpRead/OpWrite) carries its payload in Buf; a vectored
// request (OpReadv/OpWritev) carries it in Vec. Tag is an opaque caller
// payload that the engine never interprets and preserves across merging.
//
// The caller owns Requests. The engine rewrites a Request in place when it
// becomes the head of a merged run and restores it verbatim when the run is
// expanded or its completion is split. A Request must not be modified by the
// caller between Merge and the matching Expand or Split.
type Request struct {
	Fd     int32    // file handle the request targets
	Op     Opcode   // one of OpRead, OpWrite, OpReadv, OpWritev
	Offset int64    // byte offset into the file
	Buf    []byte   // scalar payload (OpRead/OpWrite)
	Vec    [][]byte // scatter/gather payload (OpReadv/OpWritev)
	Tag    any      // opaque caller payload, never interpreted

	// wrapper is the pool handle (slot index + 1) when this request is
	// engine-managed, 0 otherwise. Distinguishing managed from plain
	// requests by an explicit handle instead of reinterpreting an opaque
	// field keeps the check exhaustive.
	wrapper int32
}

// Completion carries one kernel completion: the originating request and a
// signed result. A non-negative result is the number of bytes transferred;
// a negative result is a negated errno.
type Completion struct {
	Req *Request
	Res int64
}

// Managed reports whether the request currently belongs to a merged run.
func (r *Request) Managed() bool {
	return r.wrapper != 0
}

// Nbytes returns the total byte length the request represents: the sum of
// the vector entry lengths for vectored requests, len(Buf) otherwise.
func (r *Request) Nbytes() int64 {
	if r.Op.isVectored() {
		var sum int64
		for _, v := range r.Vec {
			sum += int64(len(v))
		}
		return sum
	}
	return int64(len(r.Buf))
}

// end returns the first byte offset past the request's range.
func (r *Request) end() int64 {
	return r.Offset + r.Nbytes()
}

// contiguous reports whether s begins exactly where r ends on the same
// file handle (no gap, no overlap).
func (r *Request) contiguous(s *Request) bool {
	return r.Fd == s.Fd && r.end() == s.Offset
}
