package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tupleflow/tupleflow/cmd/util"
	"github.com/tupleflow/tupleflow/pkg/config"
)

// bindCommonFlags declares the flags every command shares and binds them to the matching
// config keys and TUPLEFLOW_ environment variables.
func bindCommonFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.Flags()

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in ('text' or 'json')")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use ('none', 'debug', 'info', 'warn' or 'error')")
	flags.Int("inbox-size", defaultConfig.Network.InboxSize, "the capacity of the inbox of every container, a power of two")
	flags.Int("max-rounds", defaultConfig.Network.MaxRounds, "the number of rounds after which a communication group is considered divergent, 0 for no limit")

	command.PreRun = func(cmd *cobra.Command, _ []string) {
		flags := cmd.Flags()
		util.MustBindPFlag("log.format", flags.Lookup("log-format"))
		util.MustBindEnv("log.format", "TUPLEFLOW_LOG_FORMAT")
		util.MustBindPFlag("log.level", flags.Lookup("log-level"))
		util.MustBindEnv("log.level", "TUPLEFLOW_LOG_LEVEL")
		util.MustBindPFlag("network.inboxSize", flags.Lookup("inbox-size"))
		util.MustBindEnv("network.inboxSize", "TUPLEFLOW_NETWORK_INBOX_SIZE")
		util.MustBindPFlag("network.maxRounds", flags.Lookup("max-rounds"))
		util.MustBindEnv("network.maxRounds", "TUPLEFLOW_NETWORK_MAX_ROUNDS")

		for key, flag := range extraBindings[cmd.Name()] {
			util.MustBindPFlag(key, flags.Lookup(flag))
		}
	}
}

// extraBindings maps command names to the config keys of their own flags.
var extraBindings = map[string]map[string]string{
	"verify": {
		"verify.trials":      "trials",
		"verify.steps":       "steps",
		"verify.nodes":       "nodes",
		"verify.concurrency": "concurrency",
		"verify.seed":        "seed",
	},
}

// ReadConfig returns the default configuration overridden by config.yaml, the environment
// and the flags bound so far, and verifies it.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	if err := viper.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}
