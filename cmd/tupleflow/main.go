package main

import (
	"os"

	"github.com/tupleflow/tupleflow/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	reachCmd := cmd.NewReachCommand()
	rootCmd.AddCommand(reachCmd)

	verifyCmd := cmd.NewVerifyCommand()
	rootCmd.AddCommand(verifyCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
