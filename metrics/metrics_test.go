package metrics

import (
	"testing"

	"github.com/flowlog/sequencer/sequencer"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPartitionMetricsImplementsSequencerMetrics(t *testing.T) {
	var _ sequencer.Metrics = (*PartitionMetrics)(nil)
}

func TestFactorySharesCollectorsAcrossPartitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory, err := NewFactory(reg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	p0 := factory.ForPartition("p0")
	p1 := factory.ForPartition("p1")

	p0.ObserveBatchSize(3)
	p1.ObserveBatchSize(5)
	p0.SetQueueSize(2)
	p0.ObserveRejection(sequencer.RejectionFull)
	p0.ObserveRejection(sequencer.RejectionFull)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var rejected *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == namespace+"_rejected_writes_total" {
			rejected = f
		}
	}
	if rejected == nil {
		t.Fatal("expected rejected_writes_total to be registered")
	}
	if len(rejected.Metric) != 1 {
		t.Fatalf("expected one label combination for p0/full, got %d", len(rejected.Metric))
	}
	if got := rejected.Metric[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("rejection count = %v, want 2", got)
	}
}

func TestNewFactoryFailsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewFactory(reg); err != nil {
		t.Fatalf("first NewFactory: %v", err)
	}
	if _, err := NewFactory(reg); err == nil {
		t.Fatal("expected second NewFactory against the same registry to fail")
	}
}
