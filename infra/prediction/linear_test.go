package prediction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreprediction "github.com/kilianp07/gridshed/core/prediction"
)

const weightsJSON = `{
  "features": ["Solar_Power(kW)", "Wind_Power(kW)", "DG_Power(kW)", "UPS_Power(kW)",
               "Battery_Percentage(%)", "Total_Load_Demand(kW)", "Critical_Load(kW)", "Non_Critical_Load(kW)"],
  "score": {"coef": [0, 0, 0, 0, 0, 0.1, 0.2, 0], "intercept": 0.5},
  "source": {
    "labels": ["Solar_Power(kW)", "Wind_Power(kW)", "DG_Power(kW)", "UPS_Power(kW)"],
    "coef": [
      [1, 0, 0, 0, 0, 0, 0, 0],
      [0, 1, 0, 0, 0, 0, 0, 0],
      [0, 0, 1, 0, 0, 0, 0, 0],
      [0, 0, 0, 1, 0, 0, 0, 0]
    ],
    "intercept": [0, 0, 0.5, 0]
  }
}`

func writeWeights(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLinearModelPredict(t *testing.T) {
	m, err := LoadLinearModel(writeWeights(t, weightsJSON))
	require.NoError(t, err)

	res, err := m.Predict(context.Background(), coreprediction.Features{SolarKW: 3, WindKW: 7, TotalDemandKW: 10, CriticalLoadKW: 5})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, res.PriorityScore, 1e-9)
	assert.Equal(t, "Wind_Power(kW)", res.SourceLabel)

	res, err = m.Predict(context.Background(), coreprediction.Features{DGKW: 1, UPSKW: 1.2})
	require.NoError(t, err)
	assert.Equal(t, "DG_Power(kW)", res.SourceLabel, "intercept shifts the decision")
}

func TestLinearModelStandardises(t *testing.T) {
	var w Weights
	w.Score.Coef = []float64{1, 0, 0, 0, 0, 0, 0, 0}
	w.Mean = []float64{10, 0, 0, 0, 0, 0, 0, 0}
	w.Scale = []float64{2, 1, 1, 1, 1, 1, 1, 1}
	w.Source.Labels = []string{"Solar_Power(kW)"}
	w.Source.Coef = [][]float64{make([]float64, 8)}
	w.Source.Intercept = []float64{0}
	m, err := NewLinearModel(w)
	require.NoError(t, err)
	res, err := m.Predict(context.Background(), coreprediction.Features{SolarKW: 14})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.PriorityScore, 1e-9)
}

func TestLinearModelRejectsBadShapes(t *testing.T) {
	_, err := LoadLinearModel(writeWeights(t, `{"score":{"coef":[1,2]}}`))
	assert.Error(t, err)
	_, err = LoadLinearModel(writeWeights(t, `{"features":["a"],"score":{"coef":[1,2,3,4,5,6,7,8]}}`))
	assert.Error(t, err)
	_, err = LoadLinearModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLinearModelCancelled(t *testing.T) {
	m, err := LoadLinearModel(writeWeights(t, weightsJSON))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, coreprediction.Features{})
	assert.ErrorIs(t, err, context.Canceled)
}
