// Package config loads ordmap settings from a YAML file and ORDMAP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/ordmap/pkg/persist"
)

// Sentinel validation errors.
var (
	ErrInvalidKeys         = errors.New("workload key count must be positive")
	ErrInvalidOrder        = errors.New("unknown workload key order")
	ErrInvalidRemoveRatio  = errors.New("remove ratio must be within [0, 1]")
	ErrInvalidVerifyEvery  = errors.New("verify interval must not be negative")
	ErrInvalidShards       = errors.New("shard count must be positive")
	ErrInvalidMemoryBudget = errors.New("invalid tree memory budget")
	ErrInvalidMaxNodes     = errors.New("max nodes must not be negative")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidSampleRatio  = errors.New("trace sample ratio must be within [0, 1]")
)

// Workload key orders.
const (
	OrderSequential = "sequential"
	OrderReverse    = "reverse"
	OrderShuffled   = "shuffled"
)

// EstimatedNodeBytes approximates the arena footprint of one int-keyed,
// string-valued node including its share of the free list.
const EstimatedNodeBytes = 48

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ORDMAP"

// Config holds all configuration for the ordmap command.
type Config struct {
	Workload WorkloadConfig `mapstructure:"workload"`
	Tree     TreeConfig     `mapstructure:"tree"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// WorkloadConfig describes the synthetic workload of the run command.
type WorkloadConfig struct {
	Order       string  `mapstructure:"order"`
	Keys        int     `mapstructure:"keys"`
	Seed        int64   `mapstructure:"seed"`
	RemoveRatio float64 `mapstructure:"remove_ratio"`
	// VerifyEvery checks the invariants after every N mutations. Zero checks
	// only once the workload is done.
	VerifyEvery int `mapstructure:"verify_every"`
	// Shards above one spread the keys over independently locked maps and
	// drive each shard from its own goroutine.
	Shards int `mapstructure:"shards"`
}

// TreeConfig bounds the node arena.
type TreeConfig struct {
	// MemoryBudget is a human readable size such as "64MiB". Empty means unlimited.
	MemoryBudget string `mapstructure:"memory_budget"`
	// MaxNodes caps the live node count directly and wins over MemoryBudget.
	MaxNodes int `mapstructure:"max_nodes"`
}

// SnapshotConfig selects where and how snapshots are stored.
type SnapshotConfig struct {
	Directory   string `mapstructure:"directory"`
	Name        string `mapstructure:"name"`
	Codec       string `mapstructure:"codec"`
	Compression string `mapstructure:"compression"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig holds telemetry export configuration.
type MetricsConfig struct {
	// Addr is the Prometheus scrape listen address. Empty disables the endpoint.
	Addr         string        `mapstructure:"addr"`
	Linger       time.Duration `mapstructure:"linger"`
	OTLPEndpoint string        `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string        `mapstructure:"otlp_headers"`
	OTLPInsecure bool          `mapstructure:"otlp_insecure"`
	SampleRatio  float64       `mapstructure:"sample_ratio"`
	TraceVerbose bool          `mapstructure:"trace_verbose"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for ordmap.yaml in the usual places and
// falls back to defaults when none exists.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("ordmap")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/ordmap")
		viperCfg.AddConfigPath("/etc/ordmap")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("workload.order", OrderShuffled)
	viperCfg.SetDefault("workload.keys", 10000)
	viperCfg.SetDefault("workload.seed", 1)
	viperCfg.SetDefault("workload.remove_ratio", 0.5)
	viperCfg.SetDefault("workload.verify_every", 0)
	viperCfg.SetDefault("workload.shards", 1)

	viperCfg.SetDefault("tree.memory_budget", "")
	viperCfg.SetDefault("tree.max_nodes", 0)

	viperCfg.SetDefault("snapshot.directory", ".")
	viperCfg.SetDefault("snapshot.name", "ordmap")
	viperCfg.SetDefault("snapshot.codec", persist.CodecJSON)
	viperCfg.SetDefault("snapshot.compression", persist.CompressionNone)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.json", false)

	viperCfg.SetDefault("metrics.addr", "")
	viperCfg.SetDefault("metrics.linger", "0s")
	viperCfg.SetDefault("metrics.otlp_endpoint", "")
	viperCfg.SetDefault("metrics.otlp_headers", "")
	viperCfg.SetDefault("metrics.otlp_insecure", false)
	viperCfg.SetDefault("metrics.sample_ratio", 0.0)
	viperCfg.SetDefault("metrics.trace_verbose", false)
}

// Validate reports the first invalid setting.
func (config *Config) Validate() error {
	if config.Workload.Keys <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeys, config.Workload.Keys)
	}

	switch config.Workload.Order {
	case OrderSequential, OrderReverse, OrderShuffled:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrder, config.Workload.Order)
	}

	if config.Workload.RemoveRatio < 0 || config.Workload.RemoveRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRemoveRatio, config.Workload.RemoveRatio)
	}

	if config.Workload.VerifyEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVerifyEvery, config.Workload.VerifyEvery)
	}

	if config.Workload.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Workload.Shards)
	}

	if config.Tree.MaxNodes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, config.Tree.MaxNodes)
	}

	_, err := config.Tree.CapacityLimit()
	if err != nil {
		return err
	}

	_, err = config.Snapshot.NewCodec()
	if err != nil {
		return err
	}

	_, err = config.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if config.Metrics.SampleRatio < 0 || config.Metrics.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Metrics.SampleRatio)
	}

	return nil
}

// CapacityLimit converts the tree settings into an allocator node limit,
// 0 meaning unlimited.
func (tree TreeConfig) CapacityLimit() (int, error) {
	if tree.MaxNodes > 0 {
		return tree.MaxNodes, nil
	}

	if tree.MemoryBudget == "" {
		return 0, nil
	}

	budget, err := humanize.ParseBytes(tree.MemoryBudget)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMemoryBudget, err)
	}

	nodes := budget / EstimatedNodeBytes
	if nodes == 0 {
		return 0, fmt.Errorf("%w: %s holds no node", ErrInvalidMemoryBudget, tree.MemoryBudget)
	}

	return int(min(nodes, math.MaxInt32)), nil
}

// NewCodec builds the snapshot codec named by the settings.
func (snapshot SnapshotConfig) NewCodec() (persist.Codec, error) {
	codec, err := persist.CodecByName(snapshot.Codec, snapshot.Compression)
	if err != nil {
		return nil, fmt.Errorf("snapshot codec: %w", err)
	}

	return codec, nil
}

// SlogLevel parses the configured log level.
func (logging LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(logging.Level))
	if err != nil {
		return level, fmt.Errorf("%w: %q", ErrInvalidLogLevel, logging.Level)
	}

	return level, nil
}
