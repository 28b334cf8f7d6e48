package prediction

import "context"

// FeatureNames lists the model inputs in vector order, using the column
// names of the training dataset.
var FeatureNames = []string{
	"Solar_Power(kW)",
	"Wind_Power(kW)",
	"DG_Power(kW)",
	"UPS_Power(kW)",
	"Battery_Percentage(%)",
	"Total_Load_Demand(kW)",
	"Critical_Load(kW)",
	"Non_Critical_Load(kW)",
}

// Features is the model input for one tick.
type Features struct {
	SolarKW           float64
	WindKW            float64
	DGKW              float64
	UPSKW             float64
	BatteryPct        float64
	TotalDemandKW     float64
	CriticalLoadKW    float64
	NonCriticalLoadKW float64
}

// Vector returns the features in FeatureNames order.
func (f Features) Vector() []float64 {
	return []float64{
		f.SolarKW, f.WindKW, f.DGKW, f.UPSKW,
		f.BatteryPct, f.TotalDemandKW, f.CriticalLoadKW, f.NonCriticalLoadKW,
	}
}

// Result is the predictor output.
type Result struct {
	PriorityScore float64
	SourceLabel   string
}

// Predictor estimates a priority score and an optimal source label.
type Predictor interface {
	Predict(ctx context.Context, f Features) (Result, error)
}
