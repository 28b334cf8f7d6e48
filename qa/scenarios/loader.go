package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/core/priority"
)

type SnapshotDef struct {
	SolarKW       float64 `yaml:"solar_kw"`
	WindKW        float64 `yaml:"wind_kw"`
	DGKW          float64 `yaml:"dg_kw"`
	UPSKW         float64 `yaml:"ups_kw"`
	BatteryPct    float64 `yaml:"battery_pct"`
	TotalDemandKW float64 `yaml:"total_demand_kw"`
	GridOnline    bool    `yaml:"grid_online"`
	GridPowerKW   float64 `yaml:"grid_power_kw"`
}

func (s SnapshotDef) ToModel() model.PowerSnapshot {
	return model.PowerSnapshot{
		SolarKW:       s.SolarKW,
		WindKW:        s.WindKW,
		DGKW:          s.DGKW,
		UPSKW:         s.UPSKW,
		BatteryPct:    s.BatteryPct,
		TotalDemandKW: s.TotalDemandKW,
		GridOnline:    s.GridOnline,
		GridPowerKW:   s.GridPowerKW,
	}
}

// OverrideDef re-ranks a registry class before the first tick.
type OverrideDef struct {
	Category string `yaml:"category"`
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

// Expected lists what a tick must produce. Empty fields are not checked.
type Expected struct {
	Source      string   `yaml:"source"`
	On          []string `yaml:"on"`
	Off         []string `yaml:"off"`
	RemainingKW *float64 `yaml:"remaining_kw"`
	Shortfall   *bool    `yaml:"demand_exceeds_supply"`
	// Error names the failure expected instead of a decision: "validation"
	// or "no_load_data".
	Error string `yaml:"error"`
}

type Tick struct {
	Name     string             `yaml:"name,omitempty"`
	Snapshot SnapshotDef        `yaml:"snapshot"`
	Circuits map[string]float64 `yaml:"circuits"`
	Expected Expected           `yaml:"expected"`
}

type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Bindings    map[string]string `yaml:"bindings,omitempty"`
	Overrides   []OverrideDef     `yaml:"overrides,omitempty"`
	Ticks       []Tick            `yaml:"ticks"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("%w: scenario name is required", model.ErrValidation)
	}
	if len(sc.Ticks) == 0 {
		return fmt.Errorf("%w: scenario %s has no ticks", model.ErrValidation, sc.Name)
	}
	for _, o := range sc.Overrides {
		if _, err := priority.ParseCategory(o.Category); err != nil {
			return err
		}
	}
	for i, t := range sc.Ticks {
		if t.Expected.Source == "" {
			continue
		}
		if _, ok := model.ParseSource(t.Expected.Source); !ok {
			return fmt.Errorf("%w: tick %d expects unknown source %q", model.ErrValidation, i, t.Expected.Source)
		}
	}
	return nil
}
