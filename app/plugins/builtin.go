package plugins

import (
	"os"
	"path/filepath"

	"github.com/kilianp07/gridshed/config"
	dispatchlog "github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/prediction"
	infraprediction "github.com/kilianp07/gridshed/infra/prediction"
)

func init() {
	RegisterLogStore("jsonl", func(lc config.LoggingConfig) (dispatchlog.LogStore, error) {
		if err := ensureDir(lc.Path); err != nil {
			return nil, err
		}
		return dispatchlog.NewJSONLStore(lc.Path)
	})
	RegisterLogStore("rotating", func(lc config.LoggingConfig) (dispatchlog.LogStore, error) {
		return dispatchlog.NewRotatingJSONLStore(lc.Path, lc.MaxSizeMB, lc.MaxBackups, lc.MaxAgeDays)
	})
	RegisterLogStore("sqlite", func(lc config.LoggingConfig) (dispatchlog.LogStore, error) {
		if err := ensureDir(lc.Path); err != nil {
			return nil, err
		}
		return dispatchlog.NewSQLiteStore(lc.Path)
	})

	RegisterPredictor("none", func(config.PredictionConfig) (prediction.Predictor, error) {
		return nil, nil
	})
	RegisterPredictor("heuristic", func(config.PredictionConfig) (prediction.Predictor, error) {
		return prediction.HeuristicPredictor{}, nil
	})
	RegisterPredictor("linear", func(pc config.PredictionConfig) (prediction.Predictor, error) {
		m, err := infraprediction.LoadLinearModel(pc.ModelPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
