// Package partition manages one sequencer.Sequencer per partition ID,
// analogous to the way the teacher's Store manages one stream per path:
// partitions are created lazily on first use and live for the registry's
// lifetime.
package partition

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowlog/sequencer/sequencer"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config carries the construction parameters for a newly created
// partition's Sequencer.
type Config struct {
	InitialPosition int64
	MaxFragmentSize int
	MetricsFactory  MetricsFactory

	// Positions, if set, is consulted on partition creation to resume
	// from a prior checkpoint instead of InitialPosition, and written to
	// by CloseAll once a partition's final position is known.
	Positions PositionStore
}

// MetricsFactory mints a sequencer.Metrics implementation scoped to one
// partition, e.g. func(id string) sequencer.Metrics { return
// promFactory.ForPartition(id) }.
type MetricsFactory func(partitionID string) sequencer.Metrics

// Registry get-or-creates Sequencers by partition ID and coordinates
// their shutdown.
type Registry struct {
	instanceID string
	logger     *zap.Logger
	defaults   Config

	mu         sync.Mutex
	partitions map[string]*sequencer.Sequencer
}

// New creates a Registry. defaults configures every partition created
// through Partition; instanceID (visible via InstanceID) tags this
// registry's logs the way a cluster node tags its own identity.
func New(defaults Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		instanceID: uuid.NewString(),
		logger:     logger,
		defaults:   defaults,
		partitions: make(map[string]*sequencer.Sequencer),
	}
}

// InstanceID returns the registry's randomly generated identity.
func (r *Registry) InstanceID() string { return r.instanceID }

// Partition returns the Sequencer for id, creating it with the
// registry's default Config on first use.
func (r *Registry) Partition(id string) *sequencer.Sequencer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.partitions[id]; ok {
		return s
	}

	opts := []sequencer.Option{sequencer.WithLogger(r.logger)}
	if r.defaults.MetricsFactory != nil {
		opts = append(opts, sequencer.WithMetrics(r.defaults.MetricsFactory(id)))
	}

	initialPosition := r.defaults.InitialPosition
	resumed := false
	if r.defaults.Positions != nil {
		if checkpointed, ok, err := r.defaults.Positions.Load(id); err != nil {
			r.logger.Warn("failed to load checkpoint, starting from configured InitialPosition",
				zap.String("partition", id), zap.Error(err))
		} else if ok {
			initialPosition = checkpointed
			resumed = true
		}
	}

	s := sequencer.New(id, initialPosition, r.defaults.MaxFragmentSize, opts...)
	r.partitions[id] = s
	r.logger.Info("partition registered",
		zap.String("instance", r.instanceID),
		zap.String("partition", id),
		zap.Int64("initial_position", initialPosition),
		zap.Bool("resumed_from_checkpoint", resumed),
	)
	return s
}

// Partitions returns the IDs of every partition created so far.
func (r *Registry) Partitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.partitions))
	for id := range r.partitions {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll closes every partition's Sequencer, then runs drainFn
// concurrently across partitions. drainFn is invoked once per partition
// with its Sequencer already closed, so it can read and hand off the
// remaining buffered batches to a downstream appender; it is the
// caller's responsibility to stop on ctx cancellation.
func (r *Registry) CloseAll(ctx context.Context, drainFn func(ctx context.Context, partitionID string, s *sequencer.Sequencer) error) error {
	r.mu.Lock()
	snapshot := make(map[string]*sequencer.Sequencer, len(r.partitions))
	for id, s := range r.partitions {
		snapshot[id] = s
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for id, s := range snapshot {
		id, s := id, s
		s.Close()
		g.Go(func() error {
			if drainFn != nil {
				if err := drainFn(gctx, id, s); err != nil {
					return fmt.Errorf("partition %s: %w", id, err)
				}
			}
			if r.defaults.Positions != nil {
				if err := r.defaults.Positions.Save(id, s.Position()); err != nil {
					return fmt.Errorf("partition %s: checkpoint: %w", id, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
