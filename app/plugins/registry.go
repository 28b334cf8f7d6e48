// Package plugins maps configuration backend names to the implementations
// built into the binary.
package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/gridshed/config"
	dispatchlog "github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/prediction"
)

// LogStoreFactory builds a decision log store from its configuration.
type LogStoreFactory func(cfg config.LoggingConfig) (dispatchlog.LogStore, error)

// PredictorFactory builds a predictor from its configuration. A nil
// predictor disables predictions.
type PredictorFactory func(cfg config.PredictionConfig) (prediction.Predictor, error)

var (
	LogStores  = map[string]LogStoreFactory{}
	Predictors = map[string]PredictorFactory{}
)

func RegisterLogStore(name string, f LogStoreFactory)   { LogStores[name] = f }
func RegisterPredictor(name string, f PredictorFactory) { Predictors[name] = f }

// NewLogStore creates the store named by cfg.Backend.
func NewLogStore(cfg config.LoggingConfig) (dispatchlog.LogStore, error) {
	f, ok := LogStores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown log store %q (known: %v)", cfg.Backend, names(LogStores))
	}
	return f(cfg)
}

// NewPredictor creates the predictor named by cfg.Backend.
func NewPredictor(cfg config.PredictionConfig) (prediction.Predictor, error) {
	f, ok := Predictors[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown predictor %q (known: %v)", cfg.Backend, names(Predictors))
	}
	return f(cfg)
}

func names[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
