package prediction

import (
	"context"
	"math"
)

// HeuristicPredictor computes the quantities the trained models learn: the
// share of critical load in the reported demand and the fallback source with
// the most power. It needs no model file.
type HeuristicPredictor struct{}

// Predict implements Predictor.
func (HeuristicPredictor) Predict(_ context.Context, f Features) (Result, error) {
	var res Result
	if f.TotalDemandKW > 0 {
		res.PriorityScore = math.Round(f.CriticalLoadKW/f.TotalDemandKW*100) / 100
	}
	labels := FeatureNames[:4]
	best := 0
	v := f.Vector()
	for i := 1; i < len(labels); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	res.SourceLabel = labels[best]
	return res, nil
}
