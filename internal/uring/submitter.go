// Package uring submits merged request batches to the kernel through
// io_uring and collects the per-head completions the splitter consumes.
// It is a thin adapter at the engine's external boundary: one SQE per run
// head, one Completion per CQE, no queue management or retry policy.
package uring

import (
	iocoalesce "github.com/ehrlich-b/go-iocoalesce"
)

// Submitter turns a merged batch into kernel I/O and returns one
// completion per batch entry. Completions are returned in kernel
// completion order, which the splitter handles without reordering.
type Submitter interface {
	// Submit issues one vectored I/O per request in batch and waits for
	// all of them to complete. The returned slice has one Completion per
	// batch entry, each referencing its originating request.
	Submit(batch []*iocoalesce.Request) ([]iocoalesce.Completion, error)

	// Close tears down the ring and releases resources.
	Close() error
}

// Config contains configuration for creating a submitter.
type Config struct {
	// Entries is the submission queue depth. A batch larger than this is
	// rejected as an invalid-parameters error.
	Entries uint32
}
