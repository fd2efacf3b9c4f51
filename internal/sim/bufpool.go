package sim

import "sync"

// Payload buffers for generated requests are pooled in power-of-2 size
// buckets so repeated runs do not churn the allocator. Buffers larger than
// the top bucket are allocated directly and never pooled.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

const (
	size4k  = 4 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
)

var payloadPool = struct {
	pool4k  sync.Pool
	pool16k sync.Pool
	pool64k sync.Pool
}{
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// getBuffer returns a pooled buffer of at least the requested size.
func getBuffer(size int) []byte {
	switch {
	case size <= size4k:
		return (*payloadPool.pool4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*payloadPool.pool16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*payloadPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// putBuffer returns a buffer to its bucket. Buffers with non-standard
// capacity are dropped.
func putBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		payloadPool.pool4k.Put(&buf)
	case size16k:
		payloadPool.pool16k.Put(&buf)
	case size64k:
		payloadPool.pool64k.Put(&buf)
	}
}
