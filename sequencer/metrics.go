package sequencer

// Metrics receives side-effect-only observations from a Sequencer. All
// methods must be non-blocking; a Metrics implementation that can block
// or panic under normal load violates the sequencer's concurrency
// contract (§4.3 in the design notes this package implements).
type Metrics interface {
	// ObserveBatchSize records the size of a successfully enqueued
	// batch, called after enqueue inside the critical section.
	ObserveBatchSize(n int)

	// SetQueueSize records the queue depth, called on every exit from
	// the critical section regardless of outcome.
	SetQueueSize(k int)

	// ObserveRejection records a rejected write and why, so rejection
	// counts are derivable without the caller threading them through.
	ObserveRejection(reason string)
}

// Rejection reasons passed to Metrics.ObserveRejection.
const (
	RejectionClosed = "closed"
	RejectionFull   = "full"
)

// NopMetrics discards every observation. It is the default when a
// Sequencer is constructed without an explicit Metrics implementation.
type NopMetrics struct{}

func (NopMetrics) ObserveBatchSize(int)    {}
func (NopMetrics) SetQueueSize(int)        {}
func (NopMetrics) ObserveRejection(string) {}

var _ Metrics = NopMetrics{}
