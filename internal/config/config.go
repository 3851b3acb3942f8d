package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Resolution strategy names accepted in configuration.
const (
	StrategyAuto    = "auto"
	StrategyJoin    = "join"
	StrategyHashmap = "hashmap"
	StrategySharded = "sharded"
)

// Defaults applied by Normalize when a field is unset.
const (
	DefaultBatchSize           = 5000
	DefaultConfidenceThreshold = 0.5
	DefaultWorkers             = 8
)

// ResolutionConfig controls the cross-file resolution pass.
type ResolutionConfig struct {
	// Strategy is one of join, hashmap, sharded, or auto (pick by repository
	// size at resolution-phase start).
	Strategy string `yaml:"strategy,omitempty"`

	// BatchSize is the number of placeholders resolved per round-trip.
	BatchSize int `yaml:"batchSize,omitempty"`

	// ConfidenceThreshold is the minimum accepted match score.
	ConfidenceThreshold float64 `yaml:"confidenceThreshold,omitempty"`

	// Immediate runs resolution synchronously after each update batch.
	// When false, touched placeholders are left for a deferred pass.
	Immediate *bool `yaml:"immediate,omitempty"`
}

// StoreConfig selects the graph backend.
type StoreConfig struct {
	// Path is the KuzuDB directory. Empty selects the in-memory store.
	Path string `yaml:"path,omitempty"`
}

// ProjectConfig holds project-level settings loaded from codegraph.yml.
type ProjectConfig struct {
	Repository  string           `yaml:"repository,omitempty"`
	Store       StoreConfig      `yaml:"store,omitempty"`
	Resolution  ResolutionConfig `yaml:"resolution,omitempty"`
	Workers     int              `yaml:"workers,omitempty"`
	Languages   []string         `yaml:"languages,omitempty"`
	ExcludeDirs []string         `yaml:"excludeDirs,omitempty"`
	Verbose     bool             `yaml:"verbose,omitempty"`
}

// Load attempts to read codegraph.yml or codegraph.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists. The result is normalized.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"codegraph.yml", "codegraph.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Normalize(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	cfg := &ProjectConfig{}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize fills defaults and validates enum fields.
func (c *ProjectConfig) Normalize() error {
	if c.Resolution.Strategy == "" {
		c.Resolution.Strategy = StrategyJoin
	}
	switch c.Resolution.Strategy {
	case StrategyAuto, StrategyJoin, StrategyHashmap, StrategySharded:
	default:
		return fmt.Errorf("config: unknown resolution strategy %q", c.Resolution.Strategy)
	}
	if c.Resolution.BatchSize <= 0 {
		c.Resolution.BatchSize = DefaultBatchSize
	}
	if c.Resolution.ConfidenceThreshold <= 0 {
		c.Resolution.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.Resolution.Immediate == nil {
		immediate := true
		c.Resolution.Immediate = &immediate
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return nil
}

// ResolveImmediately reports whether resolution runs synchronously after
// each update batch.
func (c *ProjectConfig) ResolveImmediately() bool {
	return c.Resolution.Immediate == nil || *c.Resolution.Immediate
}
