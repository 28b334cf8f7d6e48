package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridshed/config"
	"github.com/kilianp07/gridshed/core/priority"
	"github.com/kilianp07/gridshed/infra/logger"
	infrapriority "github.com/kilianp07/gridshed/infra/priority"
)

var prioritiesCmd = &cobra.Command{
	Use:   "priorities",
	Short: "Inspect and change the priority configuration",
}

var prioritiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print current and default priorities",
	Args:  cobra.NoArgs,
	RunE:  runPrioritiesList,
}

var prioritiesSetCmd = &cobra.Command{
	Use:   "set <category> <name> <priority>",
	Short: "Re-rank a priority class",
	Args:  cobra.ExactArgs(3),
	RunE:  runPrioritiesSet,
}

var prioritiesPersistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Write the current priorities to the override file again",
	Args:  cobra.NoArgs,
	RunE:  runPrioritiesPersist,
}

var listRationale bool

var prioritiesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default priorities",
	Args:  cobra.NoArgs,
	RunE:  runPrioritiesReset,
}

func init() {
	prioritiesListCmd.Flags().BoolVar(&listRationale, "rationale", false, "print only the rationale of each class")
	prioritiesCmd.AddCommand(prioritiesListCmd, prioritiesSetCmd, prioritiesResetCmd, prioritiesPersistCmd)
	rootCmd.AddCommand(prioritiesCmd)
}

func openRegistry() (*priority.Registry, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New("priority")
	reg := infrapriority.NewRegistry(cfg.Priorities.DefaultPath, cfg.Priorities.OverridePath, logg)
	if err := reg.Load(); err != nil {
		logg.Warnf("priority config: %v", err)
	}
	return reg, nil
}

func runPrioritiesList(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if listRationale {
		return enc.Encode(reg.Priorities().Rationale())
	}
	return enc.Encode(reg.Priorities())
}

func runPrioritiesSet(cmd *cobra.Command, args []string) error {
	rank, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("priority must be an integer: %w", err)
	}
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	return reportChange(cmd, reg.UpdatePriority(priority.Category(args[0]), args[1], rank),
		fmt.Sprintf("%s/%s set to %d", args[0], args[1], rank))
}

func runPrioritiesReset(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	return reportChange(cmd, reg.ResetToDefault(), "priorities reset to defaults")
}

func runPrioritiesPersist(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	if err := reg.Persist(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "priorities persisted")
	return err
}

// reportChange treats a persistence failure as a warning: the change was
// applied but will not survive a restart.
func reportChange(cmd *cobra.Command, err error, msg string) error {
	if errors.Is(err, priority.ErrPersistence) {
		_, werr := fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		return werr
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
	return err
}
