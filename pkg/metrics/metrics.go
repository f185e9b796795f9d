// Package metrics exposes the commit pool's Prometheus instrumentation:
// pool-size gauges, job-duration histograms, and rejection counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements commitpool.Metrics backed by Prometheus collectors
// registered against a caller-supplied registry.
type Collector struct {
	poolSize        *prometheus.GaugeVec
	jobDuration     prometheus.Histogram
	commitRejected  *prometheus.CounterVec
	commitAccepted  prometheus.Counter
}

// New registers the commit pool's collectors with reg and returns a
// Collector ready to be handed to commitpool.Config.Metrics.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		poolSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "commitpool",
			Name:      "index_size",
			Help:      "Number of commits currently held in a pool index.",
		}, []string{"index"}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "commitpool",
			Name:      "job_duration_seconds",
			Help:      "Duration of one pruning-and-gossip job tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		commitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commitpool",
			Name:      "commits_rejected_total",
			Help:      "Total number of single commits rejected by validateCommit, by reason.",
		}, []string{"reason"}),
		commitAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "commitpool",
			Name:      "commits_accepted_total",
			Help:      "Total number of single commits accepted by validateCommit.",
		}),
	}
}

// ObservePoolSize records the current size of one named index.
func (c *Collector) ObservePoolSize(index string, size int) {
	c.poolSize.WithLabelValues(index).Set(float64(size))
}

// ObserveJobDuration records the wall-clock duration of a job tick.
func (c *Collector) ObserveJobDuration(d time.Duration) {
	c.jobDuration.Observe(d.Seconds())
}

// IncCommitRejected increments the rejection counter for reason.
func (c *Collector) IncCommitRejected(reason string) {
	c.commitRejected.WithLabelValues(reason).Inc()
}

// IncCommitAccepted increments the acceptance counter.
func (c *Collector) IncCommitAccepted() {
	c.commitAccepted.Inc()
}
