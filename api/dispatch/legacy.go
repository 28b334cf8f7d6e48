package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/kilianp07/gridshed/core/grid"
	"github.com/kilianp07/gridshed/core/model"
)

// Dataset column names of the flat prediction payload.
const (
	fieldBattery     = "Battery_Percentage(%)"
	fieldTotalDemand = "Total_Load_Demand(kW)"
	fieldGridStatus  = "Grid_Status"
)

var mcbField = regexp.MustCompile(`^(MCB_\d+)_Power\(kW\)$`)

// GridReader returns the operator-entered grid reading.
type GridReader interface {
	Get() grid.Reading
}

type legacyResponse struct {
	Priority        *float64        `json:"priority,omitempty"`
	OptimalSource   string          `json:"optimal_source"`
	GridStatus      string          `json:"grid_status"`
	PowerManagement powerManagement `json:"power_management"`
}

type powerManagement struct {
	OptimalSource       string             `json:"optimal_source"`
	TotalAvailablePower float64            `json:"total_available_power"`
	MCBStatuses         map[string]int     `json:"mcb_statuses"`
	MCBPowers           map[string]float64 `json:"mcb_powers"`
	RemainingPower      float64            `json:"remaining_power"`
	DemandExceedsSupply bool               `json:"demand_exceeds_supply"`
	TotalDemand         float64            `json:"total_demand"`
	SourceConsumption   map[string]float64 `json:"source_consumption"`
}

// NewPredictHandler returns the handler of POST /predict. It accepts the flat
// dataset payload ("Solar_Power(kW)", "MCB_1_Power(kW)", ...) and answers in
// the same vocabulary. When the payload carries neither Grid_Status nor
// Grid_Power(kW) the reading of g is used; a nil g means grid offline.
func NewPredictHandler(d Decider, g GridReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		snap, draws, err := parseFlatPayload(raw, g)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dec, err := d.Decide(r.Context(), snap, draws)
		if err != nil {
			writeDecisionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, legacyFromDecision(dec, draws))
	})
}

func parseFlatPayload(raw map[string]json.RawMessage, g GridReader) (model.PowerSnapshot, map[string]float64, error) {
	var snap model.PowerSnapshot
	required := []struct {
		key string
		dst *float64
	}{
		{model.SourceSolar.Field(), &snap.SolarKW},
		{model.SourceWind.Field(), &snap.WindKW},
		{model.SourceDG.Field(), &snap.DGKW},
		{model.SourceUPS.Field(), &snap.UPSKW},
		{fieldBattery, &snap.BatteryPct},
		{fieldTotalDemand, &snap.TotalDemandKW},
	}
	for _, f := range required {
		v, ok, err := number(raw, f.key)
		if err != nil {
			return snap, nil, err
		}
		if !ok {
			return snap, nil, fmt.Errorf("missing field %s", f.key)
		}
		*f.dst = v
	}

	status, hasStatus, err := number(raw, fieldGridStatus)
	if err != nil {
		return snap, nil, err
	}
	power, hasPower, err := number(raw, model.SourceGrid.Field())
	if err != nil {
		return snap, nil, err
	}
	switch {
	case hasStatus || hasPower:
		snap.GridOnline = status == 1
		snap.GridPowerKW = power
	case g != nil:
		g.Get().Apply(&snap)
	}

	draws := make(map[string]float64)
	for key := range raw {
		m := mcbField.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		v, _, err := number(raw, key)
		if err != nil {
			return snap, nil, err
		}
		draws[m[1]] = v
	}
	return snap, draws, nil
}

func number(raw map[string]json.RawMessage, key string) (float64, bool, error) {
	b, ok := raw[key]
	if !ok || string(b) == "null" {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
	return v, true, nil
}

func legacyFromDecision(d model.Decision, draws map[string]float64) legacyResponse {
	pm := powerManagement{
		OptimalSource:       d.SelectedSource.Field(),
		TotalAvailablePower: d.TotalAvailableKW,
		MCBStatuses:         make(map[string]int, len(d.Statuses)),
		MCBPowers:           draws,
		RemainingPower:      d.RemainingKW,
		DemandExceedsSupply: d.DemandExceedsSupply,
		TotalDemand:         d.TotalDemandKW,
		SourceConsumption: map[string]float64{
			"Solar_Power": d.Consumption.SolarKW,
			"Wind_Power":  d.Consumption.WindKW,
			"DG_Power":    d.Consumption.DGKW,
			"UPS_Power":   d.Consumption.UPSKW,
			"Grid_Power":  d.Consumption.GridKW,
		},
	}
	for id, st := range d.Statuses {
		if st == model.StatusOn {
			pm.MCBStatuses[id] = 1
		} else {
			pm.MCBStatuses[id] = 0
		}
	}
	resp := legacyResponse{
		OptimalSource:   pm.OptimalSource,
		GridStatus:      "Failure",
		PowerManagement: pm,
	}
	if d.GridOnline {
		resp.GridStatus = "Active"
	}
	if d.Prediction != nil {
		score := d.Prediction.PriorityScore
		resp.Priority = &score
		resp.OptimalSource = d.Prediction.SourceLabel
	}
	return resp
}
