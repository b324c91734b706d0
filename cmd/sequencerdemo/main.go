// Command sequencerdemo wires a partition.Registry, a Prometheus
// metrics factory, and a bbolt-backed appender together to exercise the
// sequencer end to end: for each partition, several producer goroutines
// write entries and one consumer goroutine drains the resulting batches
// and hands them to durable storage.
//
// This is demonstration plumbing, not the library: "no CLI, no
// environment variables, no on-disk state" (per the sequencer's own
// contract) describes the sequencer package, not this binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/flowlog/sequencer/appender"
	appmetrics "github.com/flowlog/sequencer/metrics"
	"github.com/flowlog/sequencer/partition"
	"github.com/flowlog/sequencer/sequencer"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML demo config (optional; defaults are used if omitted)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg := defaultConfig()
	if configPath != "" {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	metricsFactory, err := appmetrics.NewFactory(reg)
	if err != nil {
		return fmt.Errorf("build metrics factory: %w", err)
	}

	positions, err := partition.NewFilePositionStore(cfg.CheckpointDir)
	if err != nil {
		return fmt.Errorf("build checkpoint store: %w", err)
	}

	registry := partition.New(partition.Config{
		InitialPosition: cfg.InitialPosition,
		MaxFragmentSize: cfg.MaxFragmentSize,
		MetricsFactory:  func(id string) sequencer.Metrics { return metricsFactory.ForPartition(id) },
		Positions:       positions,
	}, logger)

	// One bbolt database shared by every partition: opening it once
	// avoids a second exclusive-lock Open against the same file ever
	// blocking, and each partition writes into its own nested bucket.
	store, err := appender.OpenBoltStore(cfg.DataFile)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer store.Close()

	appenders := make(map[string]*appender.BoltAppender, len(cfg.Partitions))
	for _, id := range cfg.Partitions {
		a, err := store.Appender(id)
		if err != nil {
			return fmt.Errorf("partition %s: %w", id, err)
		}
		appenders[id] = a
	}

	var producers sync.WaitGroup
	var consumers sync.WaitGroup
	stops := make(map[string]chan struct{}, len(cfg.Partitions))
	for _, id := range cfg.Partitions {
		s := registry.Partition(id)
		sig := sequencer.NewChannelSignal()
		s.RegisterConsumer(sig)

		stop := make(chan struct{})
		stops[id] = stop
		consumers.Add(1)
		go func(partitionID string, s *sequencer.Sequencer, a *appender.BoltAppender) {
			defer consumers.Done()
			consume(logger, partitionID, s, a, sig, stop)
		}(id, s, appenders[id])

		for p := 0; p < 4; p++ {
			producers.Add(1)
			go func(partitionID string, s *sequencer.Sequencer, producer int) {
				defer producers.Done()
				produce(logger, partitionID, s, producer, cfg.WritesPerProducer)
			}(id, s, p)
		}
	}

	producers.Wait()
	time.Sleep(50 * time.Millisecond) // let the consumers catch up before shutdown

	// Stop every live consumer before CloseAll's drain runs, so the two
	// never read the same partition's queue at once.
	for _, stop := range stops {
		close(stop)
	}
	consumers.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = registry.CloseAll(ctx, func(ctx context.Context, partitionID string, s *sequencer.Sequencer) error {
		for {
			batch, ok := s.TryRead()
			if !ok {
				return nil
			}
			if err := appenders[partitionID].Accept(batch); err != nil {
				return err
			}
		}
	})
	return err
}

func produce(logger *zap.Logger, partitionID string, s *sequencer.Sequencer, producer, writes int) {
	for i := 0; i < writes; i++ {
		entry := sequencer.BytesEntry(fmt.Sprintf("producer-%d-entry-%d", producer, i))
		if !s.CanWriteEvents(1, entry.Len()) {
			logger.Warn("entry too large for partition", zap.String("partition", partitionID))
			continue
		}
		if got := s.TryWrite(entry, int64(producer)); got == -1 {
			logger.Debug("write rejected", zap.String("partition", partitionID), zap.Int("producer", producer))
		}
	}
}

func consume(logger *zap.Logger, partitionID string, s *sequencer.Sequencer, a *appender.BoltAppender, sig *sequencer.ChannelSignal, stop <-chan struct{}) {
	for {
		select {
		case <-sig.C():
			for {
				batch, ok := s.TryRead()
				if !ok {
					break
				}
				if err := a.Accept(batch); err != nil {
					logger.Error("appender accept failed", zap.String("partition", partitionID), zap.Error(err))
				}
			}
			if s.IsClosed() {
				return
			}
		case <-stop:
			return
		}
	}
}
