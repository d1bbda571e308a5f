// Package config contains the configuration of the tupleflow runtime and its defaults.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/tupleflow/tupleflow/pkg/cluster"
	"github.com/tupleflow/tupleflow/pkg/logger"
	"github.com/tupleflow/tupleflow/pkg/network"
)

const (
	DefaultLogFormat = "text"
	DefaultLogLevel  = "info"

	DefaultMaxRounds   = 0
	DefaultPullTimeout = 10 * time.Second

	DefaultVerifyTrials      = 20
	DefaultVerifySteps       = 300
	DefaultVerifyNodes       = 12
	DefaultVerifyConcurrency = 4
	DefaultVerifySeed        = 1
)

type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type NetworkConfig struct {
	// InboxSize is the capacity of the inbox of every container. It must be a power of two.
	InboxSize int

	// MaxRounds bounds the rounds a communication group may take to reach its fixed point.
	// Zero means unbounded.
	MaxRounds int
}

type ClusterConfig struct {
	// PullTimeout bounds every pull crossing containers. Zero means unbounded.
	PullTimeout time.Duration

	// PullConcurrency bounds the number of concurrent pulls of a single request.
	PullConcurrency int

	// IdleTimeout bounds how long the cluster is polled for quiescence.
	IdleTimeout time.Duration
}

// VerifyConfig drives the randomized self check of the reachability engine.
type VerifyConfig struct {
	Trials      int
	Steps       int
	Nodes       int
	Concurrency int
	Seed        int64
}

type Config struct {
	Log       LogConfig
	Network   NetworkConfig
	Cluster   ClusterConfig
	SelfCheck VerifyConfig `mapstructure:"verify"`
}

// DefaultConfig returns the tupleflow default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
		Network: NetworkConfig{
			InboxSize: network.DefaultInboxSize,
			MaxRounds: DefaultMaxRounds,
		},
		Cluster: ClusterConfig{
			PullTimeout:     DefaultPullTimeout,
			PullConcurrency: cluster.DefaultPullConcurrency,
			IdleTimeout:     cluster.DefaultIdleTimeout,
		},
		SelfCheck: VerifyConfig{
			Trials:      DefaultVerifyTrials,
			Steps:       DefaultVerifySteps,
			Nodes:       DefaultVerifyNodes,
			Concurrency: DefaultVerifyConcurrency,
			Seed:        DefaultVerifySeed,
		},
	}
}

// MustDefaultConfig returns a default configuration that is known to verify.
func MustDefaultConfig() *Config {
	cfg := DefaultConfig()
	if err := cfg.Verify(); err != nil {
		panic(err)
	}
	return cfg
}

func (cfg *Config) Verify() error {
	if !slices.Contains([]string{"text", "json"}, cfg.Log.Format) {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if !slices.Contains([]string{"none", "debug", "info", "warn", "error"}, cfg.Log.Level) {
		return fmt.Errorf("config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error']")
	}

	if n := cfg.Network.InboxSize; n <= 0 || n&(n-1) != 0 {
		return fmt.Errorf("config 'network.inboxSize' (%d) must be a positive power of two", n)
	}

	if cfg.Network.MaxRounds < 0 {
		return fmt.Errorf("config 'network.maxRounds' (%d) cannot be negative", cfg.Network.MaxRounds)
	}

	if cfg.Cluster.PullTimeout < 0 || cfg.Cluster.IdleTimeout < 0 {
		return fmt.Errorf("configs 'cluster.pullTimeout' and 'cluster.idleTimeout' cannot be negative")
	}

	if cfg.Cluster.PullConcurrency < 1 {
		return fmt.Errorf("config 'cluster.pullConcurrency' (%d) must be at least 1", cfg.Cluster.PullConcurrency)
	}

	if cfg.SelfCheck.Trials < 1 || cfg.SelfCheck.Steps < 1 || cfg.SelfCheck.Nodes < 1 || cfg.SelfCheck.Concurrency < 1 {
		return fmt.Errorf("configs 'verify.trials', 'verify.steps', 'verify.nodes' and 'verify.concurrency' must be at least 1")
	}

	return nil
}

// NewLogger builds the logger described by the log section.
func (cfg *Config) NewLogger() (logger.Logger, error) {
	l, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ContainerOptions returns the options of a standalone container.
func (cfg *Config) ContainerOptions(l logger.Logger) []network.ContainerOption {
	return []network.ContainerOption{
		network.WithLogger(l),
		network.WithInbox(cfg.Network.InboxSize),
		network.WithMaxRounds(cfg.Network.MaxRounds),
	}
}

// ClusterOptions returns the options of a cluster and of the containers it creates.
func (cfg *Config) ClusterOptions(l logger.Logger) []cluster.Option {
	return []cluster.Option{
		cluster.WithLogger(l),
		cluster.WithInboxSize(cfg.Network.InboxSize),
		cluster.WithMaxRounds(cfg.Network.MaxRounds),
		cluster.WithPullTimeout(cfg.Cluster.PullTimeout),
		cluster.WithPullConcurrency(cfg.Cluster.PullConcurrency),
		cluster.WithIdleTimeout(cfg.Cluster.IdleTimeout),
	}
}
