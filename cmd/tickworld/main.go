// Command tickworld runs and replays the demo agent scenarios.
//
//	tickworld run --scenario collatz --set agents=1000 --strategy parallel
//	tickworld run --scenario pingpong --journal runs.db --run-id rally-1
//	tickworld replay --journal runs.db --run-id rally-1 --scenario pingpong --strategy cooperative
//	tickworld runs --journal runs.db
//	tickworld scenarios
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tickworld",
		Short:         "Deterministic tick-based agent simulations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(runCmd())
	cmd.AddCommand(replayCmd())
	cmd.AddCommand(runsCmd())
	cmd.AddCommand(scenariosCmd())
	return cmd
}
