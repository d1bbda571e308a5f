// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with TUPLEFLOW, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("TUPLEFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/tupleflow", "$HOME/.tupleflow", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "tupleflow",
		Short: "Diagnostics for the tupleflow incremental reachability and dataflow core",
		Long: `Diagnostics for the tupleflow incremental reachability and dataflow core.

The commands load edge facts, maintain their transitive closure incrementally, and check the
incremental engine against a from-scratch computation.`,
		SilenceUsage: true,
	}
}
