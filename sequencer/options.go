package sequencer

import "go.uber.org/zap"

// Option configures a Sequencer at construction time.
type Option func(*config)

type config struct {
	metrics  Metrics
	logger   *zap.Logger
	capacity int
}

// WithMetrics attaches a Metrics sink. If omitted, observations are
// discarded via NopMetrics.
func WithMetrics(m Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLogger attaches a *zap.Logger used for the warning logged on the
// first-observed closed-rejection per call site. If omitted, a no-op
// logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithQueueCapacity overrides the default bounded-queue capacity of 128
// batches. Intended for tests; production partitions should use the
// default.
func WithQueueCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}
