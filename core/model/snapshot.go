package model

import (
	"fmt"
	"math"
)

// PowerSnapshot captures source availability and demand for one tick.
type PowerSnapshot struct {
	SolarKW       float64 `json:"solar_kw"`
	WindKW        float64 `json:"wind_kw"`
	DGKW          float64 `json:"dg_kw"`
	UPSKW         float64 `json:"ups_kw"`
	BatteryPct    float64 `json:"battery_pct"`    // 0 to 100
	TotalDemandKW float64 `json:"total_demand_kw"` // reported demand, independent of circuit draws
	GridOnline    bool    `json:"grid_online"`
	GridPowerKW   float64 `json:"grid_power_kw"`
}

// Validate checks that every power field is a finite non-negative number and
// that the battery percentage is within [0,100].
func (s PowerSnapshot) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"solar_kw", s.SolarKW},
		{"wind_kw", s.WindKW},
		{"dg_kw", s.DGKW},
		{"ups_kw", s.UPSKW},
		{"total_demand_kw", s.TotalDemandKW},
		{"grid_power_kw", s.GridPowerKW},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrValidation, f.name, f.v)
		}
	}
	if math.IsNaN(s.BatteryPct) || s.BatteryPct < 0 || s.BatteryPct > 100 {
		return fmt.Errorf("%w: battery_pct must be within [0,100], got %v", ErrValidation, s.BatteryPct)
	}
	return nil
}

// Available returns the instantaneous power reported for src.
func (s PowerSnapshot) Available(src Source) float64 {
	switch src {
	case SourceGrid:
		return s.GridPowerKW
	case SourceSolar:
		return s.SolarKW
	case SourceWind:
		return s.WindKW
	case SourceDG:
		return s.DGKW
	case SourceUPS:
		return s.UPSKW
	default:
		return 0
	}
}
