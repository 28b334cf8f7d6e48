package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridshed/core/priority"
	infrapriority "github.com/kilianp07/gridshed/infra/priority"
	"github.com/kilianp07/gridshed/qa/scenarios"
)

var scenarioPriorities string

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Scenario related commands",
}

var scenarioRunCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Replay scenario ticks and check the expected decisions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScenarios,
}

func init() {
	scenarioRunCmd.Flags().StringVar(&scenarioPriorities, "priorities", "", "priority document (default: built-in baseline)")
	scenarioCmd.AddCommand(scenarioRunCmd)
	rootCmd.AddCommand(scenarioCmd)
}

func runScenarios(cmd *cobra.Command, args []string) error {
	doc := priority.Builtin()
	if scenarioPriorities != "" {
		var err error
		if doc, err = infrapriority.NewReadOnlyFileStore(scenarioPriorities).Read(); err != nil {
			return fmt.Errorf("priorities: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		sc, err := scenarios.Load(path)
		if err != nil {
			return err
		}
		rep, err := scenarios.Run(cmd.Context(), sc, doc, nil)
		if err != nil {
			return err
		}
		if !rep.Failed() {
			fmt.Fprintf(out, "PASS %s (%d ticks)\n", rep.Name, len(rep.Ticks))
			continue
		}
		failed++
		fmt.Fprintf(out, "FAIL %s\n", rep.Name)
		for _, f := range rep.Failures() {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
	}
	return nil
}
