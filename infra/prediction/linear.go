// Package prediction evaluates trained source and priority models exported
// as JSON coefficient tables.
package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	coreprediction "github.com/kilianp07/gridshed/core/prediction"
)

// Weights is the serialized form of a LinearModel. Features must match
// coreprediction.FeatureNames when present. Mean and Scale standardise the
// inputs when set.
type Weights struct {
	Features []string `json:"features,omitempty"`
	Mean     []float64 `json:"mean,omitempty"`
	Scale    []float64 `json:"scale,omitempty"`
	Score    struct {
		Coef      []float64 `json:"coef"`
		Intercept float64   `json:"intercept"`
	} `json:"score"`
	Source struct {
		Labels    []string    `json:"labels"`
		Coef      [][]float64 `json:"coef"`
		Intercept []float64   `json:"intercept"`
	} `json:"source"`
}

// LinearModel is a linear regressor for the priority score combined with a
// one-vs-rest linear classifier for the source label.
type LinearModel struct {
	mean, scale []float64
	score       *mat.VecDense
	intercept   float64
	source      *mat.Dense
	bias        *mat.VecDense
	labels      []string
}

// LoadLinearModel reads weights from a JSON file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	return NewLinearModel(w)
}

// NewLinearModel validates the weight shapes.
func NewLinearModel(w Weights) (*LinearModel, error) {
	n := len(coreprediction.FeatureNames)
	if len(w.Features) > 0 {
		if len(w.Features) != n {
			return nil, fmt.Errorf("model expects %d features, want %d", len(w.Features), n)
		}
		for i, f := range w.Features {
			if f != coreprediction.FeatureNames[i] {
				return nil, fmt.Errorf("feature %d is %q, want %q", i, f, coreprediction.FeatureNames[i])
			}
		}
	}
	if len(w.Score.Coef) != n {
		return nil, fmt.Errorf("score coefficients: got %d, want %d", len(w.Score.Coef), n)
	}
	k := len(w.Source.Labels)
	if k == 0 || len(w.Source.Coef) != k || len(w.Source.Intercept) != k {
		return nil, fmt.Errorf("source classifier needs one coefficient row and intercept per label")
	}
	if (w.Mean != nil && len(w.Mean) != n) || (w.Scale != nil && len(w.Scale) != n) {
		return nil, fmt.Errorf("mean and scale must have %d entries", n)
	}
	for _, s := range w.Scale {
		if s == 0 {
			return nil, fmt.Errorf("scale entries must be non-zero")
		}
	}
	rows := make([]float64, 0, k*n)
	for i, r := range w.Source.Coef {
		if len(r) != n {
			return nil, fmt.Errorf("source coefficients for %s: got %d, want %d", w.Source.Labels[i], len(r), n)
		}
		rows = append(rows, r...)
	}
	return &LinearModel{
		mean:      w.Mean,
		scale:     w.Scale,
		score:     mat.NewVecDense(n, append([]float64(nil), w.Score.Coef...)),
		intercept: w.Score.Intercept,
		source:    mat.NewDense(k, n, rows),
		bias:      mat.NewVecDense(k, append([]float64(nil), w.Source.Intercept...)),
		labels:    append([]string(nil), w.Source.Labels...),
	}, nil
}

// Predict implements coreprediction.Predictor.
func (m *LinearModel) Predict(ctx context.Context, f coreprediction.Features) (coreprediction.Result, error) {
	if err := ctx.Err(); err != nil {
		return coreprediction.Result{}, err
	}
	x := f.Vector()
	if m.mean != nil {
		floats.Sub(x, m.mean)
	}
	if m.scale != nil {
		floats.Div(x, m.scale)
	}
	xv := mat.NewVecDense(len(x), x)

	var logits mat.VecDense
	logits.MulVec(m.source, xv)
	logits.AddVec(&logits, m.bias)

	return coreprediction.Result{
		PriorityScore: mat.Dot(m.score, xv) + m.intercept,
		SourceLabel:   m.labels[floats.MaxIdx(logits.RawVector().Data)],
	}, nil
}
