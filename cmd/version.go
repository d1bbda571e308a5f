package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tupleflow/tupleflow/internal/build"
)

// NewVersionCommand returns the command to get the tupleflow version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the tupleflow version",
		Long:  "Return the tupleflow version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
}

func version(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "tupleflow version %s date %s commit %s\n", build.Version, build.Date, build.Commit)
	return err
}
