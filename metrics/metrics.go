// Package metrics provides a Prometheus-backed implementation of
// sequencer.Metrics. One Factory registers the collector set once
// against a caller-supplied registry; each partition then gets its own
// PartitionMetrics sharing that collector set but labeling every
// observation with its own partition ID.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "append_sequencer"

// vecs holds the shared collector set, one per Factory.
type vecs struct {
	batchSize *prometheus.HistogramVec
	queueSize *prometheus.GaugeVec
	rejected  *prometheus.CounterVec
}

func newVecs() *vecs {
	return &vecs{
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of entries in a successfully sequenced batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"partition"}),
		queueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of batches currently buffered in the sequencer's queue.",
		}, []string{"partition"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_writes_total",
			Help:      "Number of writes rejected by the sequencer, by reason.",
		}, []string{"partition", "reason"}),
	}
}

// Registerer is the subset of *prometheus.Registry this package needs;
// satisfied by *prometheus.Registry and prometheus.DefaultRegisterer.
type Registerer interface {
	Register(prometheus.Collector) error
}

// Factory registers the append-sequencer collector set once and hands
// out one PartitionMetrics per partition, all sharing that collector
// set.
type Factory struct {
	vecs *vecs
}

// NewFactory registers the collector set against reg.
func NewFactory(reg Registerer) (*Factory, error) {
	v := newVecs()
	for _, c := range []prometheus.Collector{v.batchSize, v.queueSize, v.rejected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &Factory{vecs: v}, nil
}

// ForPartition returns a PartitionMetrics that labels every observation
// with partitionID. It implements sequencer.Metrics.
func (f *Factory) ForPartition(partitionID string) *PartitionMetrics {
	return &PartitionMetrics{partitionID: partitionID, vecs: f.vecs}
}

// PartitionMetrics implements sequencer.Metrics for a single partition.
type PartitionMetrics struct {
	partitionID string
	vecs        *vecs
}

// ObserveBatchSize implements sequencer.Metrics.
func (m *PartitionMetrics) ObserveBatchSize(n int) {
	m.vecs.batchSize.WithLabelValues(m.partitionID).Observe(float64(n))
}

// SetQueueSize implements sequencer.Metrics.
func (m *PartitionMetrics) SetQueueSize(k int) {
	m.vecs.queueSize.WithLabelValues(m.partitionID).Set(float64(k))
}

// ObserveRejection implements sequencer.Metrics.
func (m *PartitionMetrics) ObserveRejection(reason string) {
	m.vecs.rejected.WithLabelValues(m.partitionID, reason).Inc()
}
