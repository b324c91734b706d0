// Package sequencer implements the append sequencer at the head of a
// partitioned log-stream pipeline: it assigns monotonically increasing
// log positions to producer-submitted entries, buffers them in a bounded
// queue, and hands them off in order to a single consumer.
//
// Persistence, replication, leadership, and the wire format of entries
// are out of scope; the sequencer only holds references to entries until
// a consumer drains them.
package sequencer

import (
	"iter"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/flowlog/sequencer/frame"
	"go.uber.org/zap"
)

// defaultQueueCapacity is the fixed bounded-queue capacity.
const defaultQueueCapacity = 128

// Sequencer assigns positions to append entries for a single partition,
// buffers the resulting batches, and exposes them to one consumer. All
// producer-facing methods are safe to call from any number of goroutines;
// the consumer-facing methods (TryRead, Peek) are intended for a single
// caller, per the multi-producer/single-consumer contract.
type Sequencer struct {
	partitionID     string
	maxFragmentSize int
	metrics         Metrics
	logger          *zap.Logger

	mu       sync.Mutex
	position int64
	queue    *batchQueue
	consumer ConsumerSignal

	closed atomic.Bool

	loggedCallSitesMu sync.Mutex
	loggedCallSites   map[uintptr]bool
}

// New constructs a Sequencer for partitionID, seeding the position
// counter at initialPosition and bounding CanWriteEvents by
// maxFragmentSize.
func New(partitionID string, initialPosition int64, maxFragmentSize int, opts ...Option) *Sequencer {
	cfg := config{
		metrics:  NopMetrics{},
		logger:   zap.NewNop(),
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	s := &Sequencer{
		partitionID:     partitionID,
		maxFragmentSize: maxFragmentSize,
		metrics:         cfg.metrics,
		logger:          cfg.logger,
		position:        initialPosition,
		queue:           newBatchQueue(cfg.capacity),
		loggedCallSites: make(map[uintptr]bool),
	}

	s.logger.Info("sequencer constructed",
		zap.String("partition", partitionID),
		zap.Int64("initial_position", initialPosition),
		zap.Int("max_fragment_size", maxFragmentSize),
	)
	return s
}

// CanWriteEvents is a pure size predicate: it reports whether a batch of
// eventCount entries totalling batchSize payload bytes fits within
// maxFragmentSize once framed. It consults no state beyond its
// arguments and maxFragmentSize.
func (s *Sequencer) CanWriteEvents(eventCount, batchSize int) bool {
	framed := batchSize + eventCount*(frame.HeaderLength+frame.FrameAlignment) + frame.FrameAlignment
	return framed <= s.maxFragmentSize
}

// TryWrite sequences a single entry, returning its assigned position on
// success or -1 if the sequencer is closed or the queue is full.
func (s *Sequencer) TryWrite(entry AppendEntry, sourcePosition int64) int64 {
	if s.closed.Load() {
		s.rejectClosed()
		return -1
	}

	s.mu.Lock()
	current := s.position
	batch := newSequencedBatch(current, sourcePosition, []AppendEntry{entry})
	ok := s.queue.offer(batch)
	if ok {
		if s.consumer != nil {
			s.consumer.Signal()
		}
		s.metrics.ObserveBatchSize(1)
		s.position = current + 1
	}
	depth := s.queue.depth()
	s.mu.Unlock()

	s.metrics.SetQueueSize(depth)
	if !ok {
		s.metrics.ObserveRejection(RejectionFull)
		return -1
	}
	return current
}

// TryWriteSeq sequences a batch of entries drawn from a single-pass
// iterator, returning -1 if rejected, 0 if entries was empty, or the
// highest assigned position (first+n-1) on success.
func (s *Sequencer) TryWriteSeq(entries iter.Seq[AppendEntry], sourcePosition int64) int64 {
	if s.closed.Load() {
		s.rejectClosed()
		return -1
	}

	materialized := slices.Collect(entries)
	n := len(materialized)
	if n == 0 {
		return 0
	}

	s.mu.Lock()
	first := s.position
	batch := newSequencedBatch(first, sourcePosition, materialized)
	ok := s.queue.offer(batch)
	if ok {
		if s.consumer != nil {
			s.consumer.Signal()
		}
		s.metrics.ObserveBatchSize(n)
		s.position = first + int64(n)
	} else if s.consumer != nil {
		// Defensible as a drain hint, not required by the contract: a
		// full queue may still be worth nudging the consumer about.
		s.consumer.Signal()
	}
	depth := s.queue.depth()
	s.mu.Unlock()

	s.metrics.SetQueueSize(depth)
	if !ok {
		s.metrics.ObserveRejection(RejectionFull)
		return -1
	}
	return batch.LastPosition()
}

// TryWriteBatch is a convenience wrapper over TryWriteSeq for callers
// holding their entries in a slice. The closed check is duplicated here
// (rather than left solely to TryWriteSeq) so a closed-sequencer
// rejection is attributed to TryWriteBatch's own caller instead of to
// TryWriteBatch itself: rejectClosed always walks up exactly one public
// method frame, and if TryWriteSeq did the reporting that frame would be
// TryWriteBatch, not the producer that called it.
func (s *Sequencer) TryWriteBatch(entries []AppendEntry, sourcePosition int64) int64 {
	if s.closed.Load() {
		s.rejectClosed()
		return -1
	}
	return s.TryWriteSeq(slices.Values(entries), sourcePosition)
}

// TryRead removes and returns the oldest buffered batch, or (nil, false)
// if the queue is empty. Allowed after Close, so a draining consumer can
// observe every batch that was accepted before the close.
func (s *Sequencer) TryRead() (*SequencedBatch, bool) {
	return s.queue.poll()
}

// Peek returns the oldest buffered batch without removing it, or
// (nil, false) if the queue is empty. Same availability rules as TryRead.
func (s *Sequencer) Peek() (*SequencedBatch, bool) {
	return s.queue.peek()
}

// Close disables further writes. It is idempotent. Closing is
// intentionally not atomic with in-flight writes: a producer already
// past the closed check when Close runs may still complete its write.
// Already-buffered batches remain readable via TryRead until drained.
func (s *Sequencer) Close() {
	if !s.closed.Swap(true) {
		s.logger.Info("sequencer closed", zap.String("partition", s.partitionID))
	}
}

// IsClosed reports whether Close has been called.
func (s *Sequencer) IsClosed() bool {
	return s.closed.Load()
}

// Position reports the position that will be assigned to the next
// accepted write. It is a read-only snapshot for callers that need to
// checkpoint progress (for example, before a restart) and plays no part
// in the assignment critical section itself.
func (s *Sequencer) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// RegisterConsumer stores signal as the sequencer's single consumer
// notification target and fires it once immediately, covering the case
// where batches are already buffered before a consumer registers.
func (s *Sequencer) RegisterConsumer(signal ConsumerSignal) {
	s.mu.Lock()
	s.consumer = signal
	s.mu.Unlock()
	signal.Signal()
}

// rejectClosed logs a warning the first time a given call site observes a
// closed-sequencer rejection, then stays silent for that call site so a
// producer retrying in a loop against a closed sequencer doesn't spam
// logs.
func (s *Sequencer) rejectClosed() {
	s.metrics.ObserveRejection(RejectionClosed)

	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return
	}

	s.loggedCallSitesMu.Lock()
	alreadyLogged := s.loggedCallSites[pc]
	s.loggedCallSites[pc] = true
	s.loggedCallSitesMu.Unlock()

	if alreadyLogged {
		return
	}

	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	s.logger.Warn("rejected write to closed sequencer",
		zap.String("partition", s.partitionID),
		zap.String("call_site", name),
	)
}
