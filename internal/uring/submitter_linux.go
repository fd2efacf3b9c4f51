//go:build linux

package uring

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	iocoalesce "github.com/ehrlich-b/go-iocoalesce"
	"github.com/ehrlich-b/go-iocoalesce/internal/logging"
)

// ringSubmitter implements Submitter over a giouring ring.
type ringSubmitter struct {
	ring    *giouring.Ring
	entries uint32
}

// NewSubmitter creates an io_uring backed submitter.
func NewSubmitter(config Config) (Submitter, error) {
	logger := logging.Default()
	logger.Debug("creating io_uring", "entries", config.Entries)

	ring, err := giouring.CreateRing(config.Entries)
	if err != nil {
		logger.Error("failed to create io_uring", "error", err)
		return nil, fmt.Errorf("create io_uring: %w", err)
	}

	return &ringSubmitter{
		ring:    ring,
		entries: config.Entries,
	}, nil
}

func (s *ringSubmitter) Submit(batch []*iocoalesce.Request) ([]iocoalesce.Completion, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if uint32(len(batch)) > s.entries {
		return nil, iocoalesce.NewError("SUBMIT", iocoalesce.ErrCodeInvalidParameters,
			fmt.Sprintf("batch of %d exceeds ring depth %d", len(batch), s.entries))
	}

	// iovecs must stay reachable until the kernel is done with them.
	iovecs := make([][]unix.Iovec, len(batch))

	for i, r := range batch {
		sqe := s.ring.GetSQE()
		if sqe == nil {
			return nil, iocoalesce.NewError("SUBMIT", iocoalesce.ErrCodeIOError,
				"submission queue full")
		}

		iov := requestIovecs(r)
		iovecs[i] = iov

		switch r.Op.Vectored() {
		case iocoalesce.OpReadv:
			sqe.PrepareReadv(int(r.Fd), uintptr(unsafe.Pointer(&iov[0])), uint32(len(iov)), uint64(r.Offset))
		case iocoalesce.OpWritev:
			sqe.PrepareWritev(int(r.Fd), uintptr(unsafe.Pointer(&iov[0])), uint32(len(iov)), uint64(r.Offset))
		default:
			return nil, iocoalesce.NewError("SUBMIT", iocoalesce.ErrCodeInvalidParameters,
				fmt.Sprintf("unsupported opcode %s", r.Op))
		}
		sqe.UserData = uint64(i)
	}

	if _, err := s.ring.SubmitAndWait(uint32(len(batch))); err != nil {
		return nil, fmt.Errorf("submit_and_wait: %w", err)
	}

	completions := make([]iocoalesce.Completion, 0, len(batch))
	for range batch {
		cqe, err := s.ring.WaitCQE()
		if err != nil {
			return nil, fmt.Errorf("wait cqe: %w", err)
		}
		completions = append(completions, iocoalesce.Completion{
			Req: batch[cqe.UserData],
			Res: int64(cqe.Res),
		})
		s.ring.CQESeen(cqe)
	}

	runtime.KeepAlive(iovecs)
	return completions, nil
}

func (s *ringSubmitter) Close() error {
	if s.ring != nil {
		s.ring.QueueExit()
		s.ring = nil
	}
	return nil
}

// requestIovecs builds the scatter/gather list for one request: the run
// head's vector entries, or a single entry for an unmerged scalar request.
func requestIovecs(r *iocoalesce.Request) []unix.Iovec {
	if r.Op == iocoalesce.OpReadv || r.Op == iocoalesce.OpWritev {
		iov := make([]unix.Iovec, len(r.Vec))
		for i, v := range r.Vec {
			iov[i].Base = &v[0]
			iov[i].SetLen(len(v))
		}
		return iov
	}

	iov := make([]unix.Iovec, 1)
	iov[0].Base = &r.Buf[0]
	iov[0].SetLen(len(r.Buf))
	return iov
}
