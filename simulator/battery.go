package main

import (
	"sync"
	"time"
)

// Battery models the facility storage bank. It only reports its state of
// charge: the decision service does not dispatch it.
type Battery struct {
	CapacityKWh float64
	Soc         float64 // state of charge [0,1]
	mu          sync.Mutex
}

// ApplyPower updates the SoC for a net power flow over dt. Positive power
// charges the bank, negative power drains it.
func (b *Battery) ApplyPower(powerKW float64, dt time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hours := dt.Hours()
	if hours <= 0 || b.CapacityKWh <= 0 {
		return
	}
	b.Soc += powerKW * hours / b.CapacityKWh
	if b.Soc < 0 {
		b.Soc = 0
	}
	if b.Soc > 1 {
		b.Soc = 1
	}
}

// Percent returns the state of charge in percent.
func (b *Battery) Percent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Soc * 100
}
