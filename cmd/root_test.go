package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tupleflow/tupleflow/cmd/util"
)

// execute runs args through a root command holding every subcommand and returns the output.
// The config directory must be prepared before, since the root command resolves it.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	root.AddCommand(NewReachCommand(), NewVerifyCommand(), NewVersionCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReadConfigNoConfigDefaultValues(t *testing.T) {
	util.PrepareTempConfigDir(t)
	reachCmd := NewReachCommand()
	reachCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := ReadConfig()
		require.NoError(t, err)
		require.Equal(t, "text", cfg.Log.Format)
		require.Equal(t, "info", cfg.Log.Level)
		require.Equal(t, 1024, cfg.Network.InboxSize)
		require.Equal(t, 10*time.Second, cfg.Cluster.PullTimeout)
		return nil
	}

	cmd := NewRootCommand()
	cmd.AddCommand(reachCmd)
	cmd.SetArgs([]string{"reach", "--facts", "unused.yaml"})
	require.NoError(t, cmd.Execute())
}

func TestReadConfigFileValuesAreParsed(t *testing.T) {
	config := `log:
    format: json
network:
    inboxSize: 64
    maxRounds: 100
cluster:
    pullTimeout: 250ms
`
	util.PrepareTempConfigFile(t, config)

	reachCmd := NewReachCommand()
	reachCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := ReadConfig()
		require.NoError(t, err)
		require.Equal(t, "json", cfg.Log.Format)
		require.Equal(t, 64, cfg.Network.InboxSize)
		require.Equal(t, 100, cfg.Network.MaxRounds)
		require.Equal(t, 250*time.Millisecond, cfg.Cluster.PullTimeout)
		return nil
	}

	cmd := NewRootCommand()
	cmd.AddCommand(reachCmd)
	cmd.SetArgs([]string{"reach", "--facts", "unused.yaml"})
	require.NoError(t, cmd.Execute())
}

func TestReadConfigIsMerged(t *testing.T) {
	config := `network:
    inboxSize: 64
`
	util.PrepareTempConfigFile(t, config)
	t.Setenv("TUPLEFLOW_LOG_LEVEL", "none")

	reachCmd := NewReachCommand()
	reachCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := ReadConfig()
		require.NoError(t, err)
		require.Equal(t, "none", cfg.Log.Level)
		require.Equal(t, 128, cfg.Network.InboxSize)
		return nil
	}

	cmd := NewRootCommand()
	cmd.AddCommand(reachCmd)
	cmd.SetArgs([]string{"reach", "--facts", "unused.yaml", "--inbox-size", "128"})
	require.NoError(t, cmd.Execute())
}

func TestReadConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name          string
		config        string
		errorExpected string
	}{
		{
			name:          "log_format",
			config:        "log:\n    format: xml\n",
			errorExpected: "config 'log.format' must be one of ['text', 'json']",
		},
		{
			name:          "inbox_size",
			config:        "network:\n    inboxSize: 100\n",
			errorExpected: "config 'network.inboxSize' (100) must be a positive power of two",
		},
		{
			name:          "max_rounds",
			config:        "network:\n    maxRounds: -1\n",
			errorExpected: "config 'network.maxRounds' (-1) cannot be negative",
		},
		{
			name:          "malformed",
			config:        "log: [\n",
			errorExpected: "failed to load config",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			util.PrepareTempConfigFile(t, tc.config)
			facts := util.WriteTempFile(t, "facts.yaml", "edges: [[1, 2]]\n")
			_, err := execute(t, "reach", "--facts", facts)
			require.ErrorContains(t, err, tc.errorExpected)
		})
	}
}
