package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridshed/app/plugins"
	"github.com/kilianp07/gridshed/config"
	"github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/pkg/export"
)

var historyOpts struct {
	since   time.Duration
	source  string
	circuit string
	limit   int
	format  string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Export recorded decisions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.DurationVar(&historyOpts.since, "since", 0, "only decisions newer than this duration")
	f.StringVar(&historyOpts.source, "source", "", "only decisions supplied by this source")
	f.StringVar(&historyOpts.circuit, "circuit", "", "only decisions involving this circuit")
	f.IntVar(&historyOpts.limit, "limit", 0, "keep the most recent n decisions")
	f.StringVar(&historyOpts.format, "format", "csv", "output format (csv|json)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	q := logging.LogQuery{CircuitID: historyOpts.circuit, Limit: historyOpts.limit}
	if historyOpts.since > 0 {
		q.Start = time.Now().Add(-historyOpts.since)
	}
	if historyOpts.source != "" {
		src, ok := model.ParseSource(historyOpts.source)
		if !ok {
			return fmt.Errorf("unknown source %q", historyOpts.source)
		}
		q.Source = &src
	}
	if historyOpts.format != "csv" && historyOpts.format != "json" {
		return fmt.Errorf("unsupported format %q", historyOpts.format)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := plugins.NewLogStore(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	if historyOpts.format == "json" {
		return export.WriteJSON(cmd.OutOrStdout(), records)
	}
	return export.WriteCSV(cmd.OutOrStdout(), records)
}
