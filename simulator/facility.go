package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/infra/telemetry"
)

// Facility produces one measurement per tick from the configured sources and
// a jittered circuit load.
type Facility struct {
	cfg     Config
	rng     *rand.Rand
	profile [24]float64
	battery *Battery
	grid    bool
	wind    float64
}

// NewFacility creates a facility with the grid online and a half charged bank.
func NewFacility(cfg Config, profile [24]float64) *Facility {
	return &Facility{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		profile: profile,
		battery: &Battery{CapacityKWh: cfg.BatteryKWh, Soc: 0.5},
		grid:    true,
		wind:    cfg.WindMeanKW,
	}
}

// Next returns the measurement for now.
func (f *Facility) Next(now time.Time) telemetry.Measurement {
	if f.rng.Float64() < f.cfg.OutageRate {
		f.grid = !f.grid
	}
	// mean reverting random walk
	f.wind += 0.3*(f.cfg.WindMeanKW-f.wind) + f.rng.NormFloat64()*f.cfg.WindMeanKW*0.1
	f.wind = math.Max(0, f.wind)

	solar := f.cfg.SolarPeakKW * f.profile[now.Hour()]

	circuits := make([]model.CircuitDraw, f.cfg.Circuits)
	demand := 0.0
	for i := range circuits {
		kw := math.Max(0, f.cfg.CircuitKW*(1+0.2*f.rng.NormFloat64()))
		kw = math.Round(kw*100) / 100
		circuits[i] = model.CircuitDraw{ID: fmt.Sprintf("MCB_%d", i+1), PowerKW: kw}
		demand += kw
	}

	snap := model.PowerSnapshot{
		SolarKW:       round2(solar),
		WindKW:        round2(f.wind),
		DGKW:          f.cfg.DGKW,
		UPSKW:         f.cfg.UPSKW,
		BatteryPct:    round2(f.battery.Percent()),
		TotalDemandKW: round2(demand),
		GridOnline:    f.grid,
	}
	if f.grid {
		snap.GridPowerKW = f.cfg.GridKW
	}
	f.battery.ApplyPower(solar+f.wind-demand, f.cfg.Interval)
	return telemetry.Measurement{Snapshot: snap, Circuits: circuits}
}

// GridOnline reports the current grid state.
func (f *Facility) GridOnline() bool { return f.grid }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
