package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/tupleflow/tupleflow/pkg/cluster"
	"github.com/tupleflow/tupleflow/pkg/network"
)

func TestDefaultConfig(t *testing.T) {
	cfg := MustDefaultConfig()
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, network.DefaultInboxSize, cfg.Network.InboxSize)
	require.Equal(t, cluster.DefaultPullConcurrency, cfg.Cluster.PullConcurrency)
	require.Equal(t, DefaultVerifyTrials, cfg.SelfCheck.Trials)
	require.Equal(t, int64(DefaultVerifySeed), cfg.SelfCheck.Seed)
}

func TestVerifySectionIsDecoded(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("verify:\n  trials: 4\n  nodes: 3\n")))

	cfg := DefaultConfig()
	require.NoError(t, v.Unmarshal(cfg))
	require.Equal(t, 4, cfg.SelfCheck.Trials)
	require.Equal(t, 3, cfg.SelfCheck.Nodes)
	require.Equal(t, DefaultVerifySteps, cfg.SelfCheck.Steps)
	require.NoError(t, cfg.Verify())
}

func TestVerify(t *testing.T) {
	for name, tc := range map[string]struct {
		mutate func(*Config)
		err    string
	}{
		"defaults": {
			mutate: func(*Config) {},
		},
		"json_logs": {
			mutate: func(cfg *Config) { cfg.Log.Format = "json" },
		},
		"unknown_log_format": {
			mutate: func(cfg *Config) { cfg.Log.Format = "xml" },
			err:    "log.format",
		},
		"panic_level_rejected": {
			mutate: func(cfg *Config) { cfg.Log.Level = "panic" },
			err:    "log.level",
		},
		"inbox_not_power_of_two": {
			mutate: func(cfg *Config) { cfg.Network.InboxSize = 1000 },
			err:    "network.inboxSize",
		},
		"inbox_zero": {
			mutate: func(cfg *Config) { cfg.Network.InboxSize = 0 },
			err:    "network.inboxSize",
		},
		"negative_rounds": {
			mutate: func(cfg *Config) { cfg.Network.MaxRounds = -1 },
			err:    "network.maxRounds",
		},
		"negative_pull_timeout": {
			mutate: func(cfg *Config) { cfg.Cluster.PullTimeout = -time.Second },
			err:    "cluster.pullTimeout",
		},
		"no_pull_concurrency": {
			mutate: func(cfg *Config) { cfg.Cluster.PullConcurrency = 0 },
			err:    "cluster.pullConcurrency",
		},
		"no_trials": {
			mutate: func(cfg *Config) { cfg.SelfCheck.Trials = 0 },
			err:    "verify.trials",
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Verify()
			if tc.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.err)
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "none"
	l, err := cfg.NewLogger()
	require.NoError(t, err)

	c, err := network.NewContainer(cfg.ContainerOptions(l)...)
	require.NoError(t, err)
	require.NotEmpty(t, c.ID())

	cl := cluster.New(cfg.ClusterOptions(l)...)
	ct, err := cl.NewContainer("a")
	require.NoError(t, err)
	require.Same(t, cl, ct.Transport())
}
