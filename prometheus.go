package iocoalesce

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a pool's Metrics as Prometheus metrics. The engine is
// single-threaded per pool, so the collector reads a Snapshot and emits
// const metrics instead of registering live counters.
type Collector struct {
	metrics *Metrics

	mergeCalls      *prometheus.Desc
	requestsIn      *prometheus.Desc
	headsOut        *prometheus.Desc
	requestsFolded  *prometheus.Desc
	expandCalls     *prometheus.Desc
	splitCalls      *prometheus.Desc
	runsByOutcome   *prometheus.Desc
	poolAllocs      *prometheus.Desc
	poolReleases    *prometheus.Desc
	poolExhaustions *prometheus.Desc
	poolInUse       *prometheus.Desc
}

// NewCollector creates a Prometheus collector over the given metrics.
// The namespace is prefixed to every metric name.
func NewCollector(namespace string, m *Metrics) *Collector {
	return &Collector{
		metrics: m,
		mergeCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "merge_calls_total"),
			"Total number of Merge invocations", nil, nil),
		requestsIn: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "requests_in_total"),
			"Total requests presented to Merge", nil, nil),
		headsOut: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "heads_out_total"),
			"Total surviving run heads returned by Merge", nil, nil),
		requestsFolded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "requests_folded_total"),
			"Total requests folded into an existing run", nil, nil),
		expandCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "expand_calls_total"),
			"Total number of Expand invocations", nil, nil),
		splitCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "split_calls_total"),
			"Total number of Split invocations", nil, nil),
		runsByOutcome: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "runs_total"),
			"Total runs unwound, by outcome", []string{"outcome"}, nil),
		poolAllocs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "pool_allocs_total"),
			"Total wrapper allocations", nil, nil),
		poolReleases: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "pool_releases_total"),
			"Total wrapper releases", nil, nil),
		poolExhaustions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "pool_exhaustions_total"),
			"Total allocations refused because the free list was empty", nil, nil),
		poolInUse: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "iocoalesce", "pool_in_use"),
			"Wrappers currently allocated", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mergeCalls
	ch <- c.requestsIn
	ch <- c.headsOut
	ch <- c.requestsFolded
	ch <- c.expandCalls
	ch <- c.splitCalls
	ch <- c.runsByOutcome
	ch <- c.poolAllocs
	ch <- c.poolReleases
	ch <- c.poolExhaustions
	ch <- c.poolInUse
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.mergeCalls, snap.MergeCalls)
	counter(c.requestsIn, snap.RequestsIn)
	counter(c.headsOut, snap.HeadsOut)
	counter(c.requestsFolded, snap.RequestsFolded)
	counter(c.expandCalls, snap.ExpandCalls)
	counter(c.splitCalls, snap.SplitCalls)

	counter(c.runsByOutcome, snap.RunsExpanded, RunExpanded.String())
	counter(c.runsByOutcome, snap.RunsFull, RunFull.String())
	counter(c.runsByOutcome, snap.RunsErrored, RunError.String())
	counter(c.runsByOutcome, snap.RunsPartial, RunPartial.String())

	counter(c.poolAllocs, snap.PoolAllocs)
	counter(c.poolReleases, snap.PoolReleases)
	counter(c.poolExhaustions, snap.PoolExhaustions)

	ch <- prometheus.MustNewConstMetric(c.poolInUse, prometheus.GaugeValue, float64(snap.PoolInUse))
}

// Compile-time interface check
var _ prometheus.Collector = (*Collector)(nil)
