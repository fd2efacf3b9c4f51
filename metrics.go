package iocoalesce

import "sync/atomic"

// RunOutcome classifies how a merged run was unwound.
type RunOutcome int

const (
	// RunExpanded means the run was reversed by Expand before submission.
	RunExpanded RunOutcome = iota
	// RunFull means the run's completion covered its full requested length.
	RunFull
	// RunError means the run's completion carried an explicit error code.
	RunError
	// RunPartial means the run's completion was a short transfer and the
	// whole run degraded to the generic I/O error.
	RunPartial
)

// String returns the short name used in traces.
func (o RunOutcome) String() string {
	switch o {
	case RunExpanded:
		return "expanded"
	case RunFull:
		return "full"
	case RunError:
		return "error"
	case RunPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// RunLengthBuckets defines the run-length histogram buckets. Each bucket
// counts runs with at most that many members; the last bucket is the
// vector entry capacity, which no run can exceed.
var RunLengthBuckets = []uint64{1, 2, 4, MaxVectorEntries}

const numRunLengthBuckets = 4

// Metrics tracks operational statistics for one coalescing pool.
type Metrics struct {
	// Merge statistics
	MergeCalls     atomic.Uint64 // Merge invocations
	RequestsIn     atomic.Uint64 // requests presented to Merge
	HeadsOut       atomic.Uint64 // surviving run heads returned by Merge
	RequestsFolded atomic.Uint64 // requests folded into an existing run

	// Expand statistics
	ExpandCalls      atomic.Uint64 // Expand invocations
	RequestsExpanded atomic.Uint64 // requests written out by Expand

	// Split statistics
	SplitCalls     atomic.Uint64 // Split invocations
	CompletionsIn  atomic.Uint64 // completions presented to Split
	CompletionsOut atomic.Uint64 // completions emitted by Split

	// Run outcome counters
	RunsExpanded atomic.Uint64 // runs reversed before submission
	RunsFull     atomic.Uint64 // runs completed in full
	RunsErrored  atomic.Uint64 // runs completed with an explicit error
	RunsPartial  atomic.Uint64 // runs degraded on a short transfer

	// Pool accounting. Allocs and Releases must return to equality after
	// every complete merge/expand or merge/split cycle.
	PoolAllocs      atomic.Uint64
	PoolReleases    atomic.Uint64
	PoolExhaustions atomic.Uint64

	// Run-length histogram (cumulative counts). Bucket[i] counts runs
	// with length <= RunLengthBuckets[i].
	RunLengths [numRunLengthBuckets]atomic.Uint64

	// Cumulative run length, for average run length.
	RunLengthTotal atomic.Uint64
	RunCount       atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// recordRun records an unwound run of the given member count.
func (m *Metrics) recordRun(length uint64, outcome RunOutcome) {
	switch outcome {
	case RunExpanded:
		m.RunsExpanded.Add(1)
	case RunFull:
		m.RunsFull.Add(1)
	case RunError:
		m.RunsErrored.Add(1)
	case RunPartial:
		m.RunsPartial.Add(1)
	}

	m.RunLengthTotal.Add(length)
	m.RunCount.Add(1)
	for i, bucket := range RunLengthBuckets {
		if length <= bucket {
			m.RunLengths[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived values.
type MetricsSnapshot struct {
	MergeCalls     uint64
	RequestsIn     uint64
	HeadsOut       uint64
	RequestsFolded uint64

	ExpandCalls      uint64
	RequestsExpanded uint64

	SplitCalls     uint64
	CompletionsIn  uint64
	CompletionsOut uint64

	RunsExpanded uint64
	RunsFull     uint64
	RunsErrored  uint64
	RunsPartial  uint64

	PoolAllocs      uint64
	PoolReleases    uint64
	PoolExhaustions uint64
	PoolInUse       uint64 // allocs minus releases

	RunLengthHistogram [numRunLengthBuckets]uint64
	AvgRunLength       float64

	// FoldRatio is the fraction of presented requests that merged into an
	// existing run instead of surviving as a head.
	FoldRatio float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		MergeCalls:       m.MergeCalls.Load(),
		RequestsIn:       m.RequestsIn.Load(),
		HeadsOut:         m.HeadsOut.Load(),
		RequestsFolded:   m.RequestsFolded.Load(),
		ExpandCalls:      m.ExpandCalls.Load(),
		RequestsExpanded: m.RequestsExpanded.Load(),
		SplitCalls:       m.SplitCalls.Load(),
		CompletionsIn:    m.CompletionsIn.Load(),
		CompletionsOut:   m.CompletionsOut.Load(),
		RunsExpanded:     m.RunsExpanded.Load(),
		RunsFull:         m.RunsFull.Load(),
		RunsErrored:      m.RunsErrored.Load(),
		RunsPartial:      m.RunsPartial.Load(),
		PoolAllocs:       m.PoolAllocs.Load(),
		PoolReleases:     m.PoolReleases.Load(),
		PoolExhaustions:  m.PoolExhaustions.Load(),
	}

	snap.PoolInUse = snap.PoolAllocs - snap.PoolReleases

	if snap.RequestsIn > 0 {
		snap.FoldRatio = float64(snap.RequestsFolded) / float64(snap.RequestsIn)
	}

	runCount := m.RunCount.Load()
	if runCount > 0 {
		snap.AvgRunLength = float64(m.RunLengthTotal.Load()) / float64(runCount)
	}

	for i := 0; i < numRunLengthBuckets; i++ {
		snap.RunLengthHistogram[i] = m.RunLengths[i].Load()
	}

	return snap
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.MergeCalls.Store(0)
	m.RequestsIn.Store(0)
	m.HeadsOut.Store(0)
	m.RequestsFolded.Store(0)
	m.ExpandCalls.Store(0)
	m.RequestsExpanded.Store(0)
	m.SplitCalls.Store(0)
	m.CompletionsIn.Store(0)
	m.CompletionsOut.Store(0)
	m.RunsExpanded.Store(0)
	m.RunsFull.Store(0)
	m.RunsErrored.Store(0)
	m.RunsPartial.Store(0)
	m.PoolAllocs.Store(0)
	m.PoolReleases.Store(0)
	m.PoolExhaustions.Store(0)
	m.RunLengthTotal.Store(0)
	m.RunCount.Store(0)
	for i := 0; i < numRunLengthBuckets; i++ {
		m.RunLengths[i].Store(0)
	}
}

// Observer allows pluggable collection of engine events alongside the
// pool's built-in Metrics.
type Observer interface {
	// ObserveMerge is called once per Merge with the batch sizes.
	ObserveMerge(requestsIn, headsOut uint64)

	// ObserveExpand is called once per Expand with the batch sizes.
	ObserveExpand(entriesIn, requestsOut uint64)

	// ObserveSplit is called once per Split with the batch sizes.
	ObserveSplit(completionsIn, completionsOut uint64)

	// ObserveRun is called for each run unwound by Expand or Split.
	ObserveRun(length uint64, outcome RunOutcome)

	// ObservePoolExhausted is called when an allocation finds the free
	// list empty.
	ObservePoolExhausted()
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveMerge(uint64, uint64)   {}
func (NoOpObserver) ObserveExpand(uint64, uint64)  {}
func (NoOpObserver) ObserveSplit(uint64, uint64)   {}
func (NoOpObserver) ObserveRun(uint64, RunOutcome) {}
func (NoOpObserver) ObservePoolExhausted()         {}

// MetricsObserver implements Observer by recording into a Metrics, for
// callers aggregating several pools into one instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveMerge(requestsIn, headsOut uint64) {
	o.metrics.MergeCalls.Add(1)
	o.metrics.RequestsIn.Add(requestsIn)
	o.metrics.HeadsOut.Add(headsOut)
	o.metrics.RequestsFolded.Add(requestsIn - headsOut)
}

func (o *MetricsObserver) ObserveExpand(entriesIn, requestsOut uint64) {
	o.metrics.ExpandCalls.Add(1)
	o.metrics.RequestsExpanded.Add(requestsOut)
}

func (o *MetricsObserver) ObserveSplit(completionsIn, completionsOut uint64) {
	o.metrics.SplitCalls.Add(1)
	o.metrics.CompletionsIn.Add(completionsIn)
	o.metrics.CompletionsOut.Add(completionsOut)
}

func (o *MetricsObserver) ObserveRun(length uint64, outcome RunOutcome) {
	o.metrics.recordRun(length, outcome)
}

func (o *MetricsObserver) ObservePoolExhausted() {
	o.metrics.PoolExhaustions.Add(1)
}

// Compile-time interface checks
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
