package main

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultSolarProfile is a clear-sky curve peaking at noon.
func DefaultSolarProfile() [24]float64 {
	var prof [24]float64
	for h := 6; h <= 18; h++ {
		prof[h] = math.Sin(math.Pi * float64(h-6) / 12)
	}
	return prof
}

// LoadSolarProfile reads an hourly solar yield profile, keyed by hour, with
// values in [0,1] relative to the configured peak.
func LoadSolarProfile(data []byte) ([24]float64, error) {
	var m map[string]float64
	var prof [24]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return prof, err
	}
	for h, v := range m {
		var hour int
		if _, err := fmt.Sscanf(h, "%d", &hour); err != nil {
			continue
		}
		if hour >= 0 && hour < 24 {
			prof[hour] = math.Max(0, math.Min(1, v))
		}
	}
	return prof, nil
}
