package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	apidispatch "github.com/kilianp07/gridshed/api/dispatch"
	"github.com/kilianp07/gridshed/app"
	"github.com/kilianp07/gridshed/config"
	"github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/infra/logger"
)

var decideCmd = &cobra.Command{
	Use:   "decide <request.json|->",
	Short: "Compute one decision from a JSON request file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecide,
}

func init() {
	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// one-shot decisions are not broadcast
	cfg.MQTT.Enabled = false

	req, err := readRequest(cmd, args[0])
	if err != nil {
		return err
	}
	draws, err := dispatch.DrawsFromList(req.Circuits)
	if err != nil {
		return err
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("decide").Errorf("service close: %v", err)
		}
	}()

	dec, err := svc.Manager.Decide(cmd.Context(), req.Snapshot, draws)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dec)
}

func readRequest(cmd *cobra.Command, path string) (apidispatch.DecisionRequest, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return apidispatch.DecisionRequest{}, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var req apidispatch.DecisionRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
