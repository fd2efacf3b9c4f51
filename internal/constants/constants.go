package constants

// Merge limits
const (
	// MaxVectorEntries is the maximum number of scatter/gather entries a
	// single vectored request may carry. This mirrors the kernel's
	// UIO_FASTIOV inline iovec capacity; a run that reaches it forces the
	// next contiguous request to start a new run.
	MaxVectorEntries = 8

	// DefaultPoolCapacity is the default wrapper pool capacity when the
	// caller does not size the pool explicitly. It must be at least the
	// largest batch the caller will ever present.
	DefaultPoolCapacity = 256
)

// Block geometry
const (
	// SectorSize is the logical sector size assumed by the simulator and
	// trace output. Offsets produced by block layers are multiples of this.
	SectorSize = 512
)
