package dispatch

import "github.com/kilianp07/gridshed/core/model"

// SourceSelector picks the source treated as authoritative for a tick and the
// power available to the allocator.
type SourceSelector interface {
	Select(s model.PowerSnapshot) (model.Source, float64)
}

// PreferenceSelector gives the grid unconditional precedence when online.
// Otherwise the label is the largest fallback source, ties going to the
// earliest of Solar, Wind, DG, UPS, while the capacity is the sum of all four.
// The label is advisory: the allocator draws from the aggregate pool.
type PreferenceSelector struct{}

// Select implements SourceSelector.
func (PreferenceSelector) Select(s model.PowerSnapshot) (model.Source, float64) {
	if s.GridOnline {
		return model.SourceGrid, s.GridPowerKW
	}
	best := model.FallbackSources[0]
	bestKW := s.Available(best)
	pool := 0.0
	for _, src := range model.FallbackSources {
		kw := s.Available(src)
		pool += kw
		if kw > bestKW {
			best, bestKW = src, kw
		}
	}
	return best, pool
}

// consumption reports every source of the snapshot, with the grid zeroed
// while it is offline.
func consumption(s model.PowerSnapshot) model.SourceConsumption {
	c := model.SourceConsumption{
		SolarKW: s.SolarKW,
		WindKW:  s.WindKW,
		DGKW:    s.DGKW,
		UPSKW:   s.UPSKW,
	}
	if s.GridOnline {
		c.GridKW = s.GridPowerKW
	}
	return c
}
