package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// demoConfig describes a run of the demo: which partitions to create and
// where the downstream bbolt appender should write. This file exists
// only for the demo binary — the sequencer library itself takes no
// configuration beyond its constructor arguments.
type demoConfig struct {
	DataFile          string   `yaml:"data_file"`
	CheckpointDir     string   `yaml:"checkpoint_dir"`
	Partitions        []string `yaml:"partitions"`
	InitialPosition   int64    `yaml:"initial_position"`
	MaxFragmentSize   int      `yaml:"max_fragment_size"`
	WritesPerProducer int      `yaml:"writes_per_producer"`
}

func loadConfig(path string) (*demoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Partitions) == 0 {
		return nil, fmt.Errorf("config must name at least one partition")
	}
	return cfg, nil
}

func defaultConfig() *demoConfig {
	return &demoConfig{
		DataFile:          "sequencer-demo.db",
		CheckpointDir:     "sequencer-demo-checkpoints",
		Partitions:        []string{"partition-0"},
		InitialPosition:   0,
		MaxFragmentSize:   1 << 20,
		WritesPerProducer: 20,
	}
}
