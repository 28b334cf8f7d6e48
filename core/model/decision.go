package model

import "time"

// AllocationResult is the outcome of one source selection and shedding pass.
type AllocationResult struct {
	SelectedSource      Source            `json:"selected_source"`
	TotalAvailableKW    float64           `json:"total_available_kw"`
	Statuses            map[string]Status `json:"mcb_statuses"`
	RemainingKW         float64           `json:"remaining_kw"`
	DemandExceedsSupply bool              `json:"demand_exceeds_supply"`
	TotalDemandKW       float64           `json:"total_demand_kw"`
}

// CircuitDecision details a circuit in allocation order.
type CircuitDecision struct {
	ID       string  `json:"id"`
	PowerKW  float64 `json:"power_kw"`
	Rank     int     `json:"rank"`
	Critical bool    `json:"critical"`
	Class    string  `json:"class,omitempty"`
	Status   Status  `json:"status"`
}

// SourceConsumption reports the power of every source seen in the snapshot.
// Grid is zero when the grid is offline.
type SourceConsumption struct {
	SolarKW float64 `json:"solar_kw"`
	WindKW  float64 `json:"wind_kw"`
	DGKW    float64 `json:"dg_kw"`
	UPSKW   float64 `json:"ups_kw"`
	GridKW  float64 `json:"grid_kw"`
}

// Prediction is the advisory output of the external predictor.
type Prediction struct {
	PriorityScore float64 `json:"priority_score"`
	SourceLabel   string  `json:"source_label"`
}

// Decision is the record produced for one tick.
type Decision struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AllocationResult
	GridOnline  bool              `json:"grid_online"`
	Circuits    []CircuitDecision `json:"circuits"`
	Consumption SourceConsumption `json:"source_consumption"`
	Prediction  *Prediction       `json:"prediction,omitempty"`
}

// Shed returns the identifiers of the circuits switched off, in allocation order.
func (d Decision) Shed() []string {
	var ids []string
	for _, c := range d.Circuits {
		if c.Status == StatusOff {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
