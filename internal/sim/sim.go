// Package sim exercises the coalescing engine against randomized workloads
// modeled on virtual disk traffic: bursts of small requests that are often,
// but not always, contiguous. It merges each generated batch, simulates
// kernel completions for a random prefix of the submitted queue, splits the
// results back and verifies that every request comes home with its identity
// and its payload accounting intact.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/eapache/queue"

	iocoalesce "github.com/ehrlich-b/go-iocoalesce"
)

// Tag is the opaque payload attached to every generated request. Index
// pins the request's identity across merge and split; Head and Sparse
// drive the payload buffer accounting.
type Tag struct {
	Index  int
	Head   bool // first request of a generated group, owns the shared buffer
	Sparse bool // group was generated with one buffer per request
}

// Config controls a simulation.
type Config struct {
	Runs     int   // number of full generate/merge/split cycles
	Requests int   // requests per run
	Sectors  int64 // disk size in sectors offsets are drawn from
	Seed     int64

	Logger Logger
}

// Logger is the subset of the logging package the simulator needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Stats accumulates over a full simulation.
type Stats struct {
	Runs      int
	Requests  int
	Heads     int // surviving heads across all merges
	BufAllocs int
	BufFrees  int
	Degraded  int // completions carrying the generic I/O error
}

// Run executes the simulation and returns aggregate statistics. Any
// conservation violation (lost request, corrupted identity, leaked wrapper
// or payload buffer) returns an error naming the run that broke.
func Run(cfg Config) (Stats, error) {
	if cfg.Runs <= 0 {
		cfg.Runs = 1
	}
	if cfg.Requests <= 0 {
		cfg.Requests = 300
	}
	if cfg.Sectors <= 0 {
		cfg.Sectors = (4 << 30) >> 9 // 4GB disk
	}

	pool, err := iocoalesce.NewPool(cfg.Requests, nil)
	if err != nil {
		return Stats{}, err
	}
	defer pool.Close()

	var stats Stats
	rng := rand.New(rand.NewSource(cfg.Seed))

	for run := 0; run < cfg.Runs; run++ {
		if err := oneRun(cfg, pool, rng, &stats); err != nil {
			return stats, fmt.Errorf("run %d: %w", run, err)
		}

		snap := pool.Metrics().Snapshot()
		if snap.PoolAllocs != snap.PoolReleases {
			return stats, fmt.Errorf("run %d: wrapper leak: %d allocs, %d releases",
				run, snap.PoolAllocs, snap.PoolReleases)
		}
		if pool.Available() != pool.Capacity() {
			return stats, fmt.Errorf("run %d: %d wrappers still allocated",
				run, pool.Capacity()-pool.Available())
		}
		if stats.BufAllocs != stats.BufFrees {
			return stats, fmt.Errorf("run %d: payload leak: %d allocs, %d frees",
				run, stats.BufAllocs, stats.BufFrees)
		}
	}

	stats.Runs = cfg.Runs
	return stats, nil
}

func oneRun(cfg Config, pool *iocoalesce.Pool, rng *rand.Rand, stats *Stats) error {
	reqs := make([]iocoalesce.Request, cfg.Requests)
	batch := make([]*iocoalesce.Request, cfg.Requests)
	for i := range reqs {
		batch[i] = &reqs[i]
	}

	randomize(rng, reqs, cfg.Sectors, stats)
	stats.Requests += cfg.Requests

	merged := pool.Merge(batch)
	stats.Heads += merged
	if cfg.Logger != nil {
		cfg.Logger.Debugf("merged %d requests into %d heads", cfg.Requests, merged)
	}

	// Submission order survives merging, so a FIFO of heads models the
	// kernel completing requests oldest-first.
	inflight := queue.New()
	for i := 0; i < merged; i++ {
		inflight.Add(batch[i])
	}

	events := make([]iocoalesce.Completion, 0, cfg.Requests)
	done := 0
	for done < cfg.Requests {
		events = simulate(rng, inflight, events[:0])
		split := pool.Split(events)

		if err := process(reqs, split, stats); err != nil {
			return err
		}
		done += len(split)
	}

	return nil
}

// randomize fills reqs with groups of contiguous same-type requests, the
// way a block layer presents sequential bursts. Roughly half the groups are
// single small requests; the rest are runs of up to ten 4KB requests,
// sometimes backed by one contiguous payload buffer, sometimes by one
// buffer per request.
func randomize(rng *rand.Rand, reqs []iocoalesce.Request, sectors int64, stats *Stats) {
	i := 0
	for i < len(reqs) {
		op := iocoalesce.OpRead
		if rng.Intn(10) >= 5 {
			op = iocoalesce.OpWrite
		}
		offset := (rng.Int63n(sectors)) << 9

		var segs, nbytes int
		if rng.Intn(10) < 4 {
			segs = 1
			nbytes = (rng.Intn(7) + 1) << 9
		} else {
			segs = rng.Intn(10) + 1
			nbytes = 4096
		}

		if i+segs > len(reqs) {
			segs = len(reqs) - i
		}

		sparse := rng.Intn(10) < 2

		var buf []byte
		if sparse {
			buf = getBuffer(nbytes)
		} else {
			buf = getBuffer(segs * nbytes)
		}
		stats.BufAllocs++

		for j := 0; j < segs; j++ {
			reqs[i+j] = iocoalesce.Request{
				Fd:     1,
				Op:     op,
				Offset: offset,
				Tag:    Tag{Index: i + j, Head: j == 0, Sparse: sparse},
			}
			offset += int64(nbytes)

			if sparse {
				reqs[i+j].Buf = buf
				if j+1 < segs {
					buf = getBuffer(nbytes)
					stats.BufAllocs++
				}
			} else {
				reqs[i+j].Buf = buf[j*nbytes : (j+1)*nbytes]
			}
		}

		i += segs
	}
}

// simulate completes a random prefix of the in-flight queue. Most
// completions report the full requested length; the rest report zero bytes,
// the short-transfer case the splitter must degrade.
func simulate(rng *rand.Rand, inflight *queue.Queue, events []iocoalesce.Completion) []iocoalesce.Completion {
	remaining := inflight.Length()
	done := remaining
	if remaining > 1 {
		done = rng.Intn(remaining-1) + 1
	}

	for i := 0; i < done; i++ {
		head := inflight.Remove().(*iocoalesce.Request)
		res := head.Nbytes()
		if rng.Intn(10) >= 8 {
			res = 0
		}
		events = append(events, iocoalesce.Completion{Req: head, Res: res})
	}

	return events
}

// process verifies every split completion against the request it claims to
// complete and releases payload buffers exactly once per allocation.
func process(reqs []iocoalesce.Request, events []iocoalesce.Completion, stats *Stats) error {
	for i := range events {
		req := events[i].Req
		tag, ok := req.Tag.(Tag)
		if !ok {
			return fmt.Errorf("completion %d: tag lost in merge cycle", i)
		}
		if req != &reqs[tag.Index] {
			return fmt.Errorf("completion %d: identity corrupt, tag index %d", i, tag.Index)
		}
		if req.Managed() {
			return fmt.Errorf("completion %d: request still engine-managed after split", i)
		}

		// A run degraded by the splitter is negative; an unmerged head that
		// the simulated kernel shorted passes through with res 0. Anything
		// else must match the request's own length exactly.
		if events[i].Res < 0 {
			stats.Degraded++
		} else if events[i].Res != 0 && events[i].Res != int64(len(req.Buf)) {
			return fmt.Errorf("completion %d: res %d does not match request length %d",
				i, events[i].Res, len(req.Buf))
		}

		if tag.Head || tag.Sparse {
			putBuffer(req.Buf)
			stats.BufFrees++
		}
		reqs[tag.Index] = iocoalesce.Request{}
	}

	return nil
}
