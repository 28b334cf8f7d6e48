// Package grid holds the operator-entered grid reading used when a
// measurement payload does not carry grid fields itself.
package grid

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/gridshed/core/model"
)

// Defaults of a freshly started or reset reading.
const (
	DefaultVoltage   = 220.0
	DefaultFrequency = 50.0
)

// Reading is the last grid measurement entered by an operator.
type Reading struct {
	PowerKW     float64   `json:"power"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Status      int       `json:"status"` // 1 online, 0 offline
	Frequency   float64   `json:"frequency"`
	LastUpdated time.Time `json:"last_updated"`
}

// Online reports whether the grid is marked as connected.
func (r Reading) Online() bool { return r.Status == 1 }

// Update carries the fields of a new reading. Nil fields keep their current
// value; when Power is nil it is derived from voltage and current.
type Update struct {
	Power     *float64 `json:"power,omitempty"`
	Voltage   *float64 `json:"voltage,omitempty"`
	Current   *float64 `json:"current,omitempty"`
	Status    *int     `json:"status,omitempty"`
	Frequency *float64 `json:"frequency,omitempty"`
}

// Status summarises connection and supply quality.
type Status struct {
	Connected   bool      `json:"connected"`
	Quality     string    `json:"quality"` // good, poor or offline
	PowerKW     float64   `json:"power"`
	Voltage     float64   `json:"voltage"`
	Frequency   float64   `json:"frequency"`
	LastUpdated time.Time `json:"last_updated"`
}

// Supply quality bounds: nominal voltage +/-10% and 50 Hz +/-0.5 Hz.
const (
	minVoltage   = DefaultVoltage * 0.9
	maxVoltage   = DefaultVoltage * 1.1
	minFrequency = 49.5
	maxFrequency = 50.5
)

// Store is a concurrency safe holder for the current reading.
type Store struct {
	mu  sync.RWMutex
	r   Reading
	now func() time.Time
}

// NewStore returns a store initialised with the default reading.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.r = s.defaults()
	return s
}

func (s *Store) defaults() Reading {
	return Reading{Voltage: DefaultVoltage, Frequency: DefaultFrequency, LastUpdated: s.now()}
}

// Get returns the current reading.
func (s *Store) Get() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

// Set applies u and returns the resulting reading. Invalid values are
// rejected with model.ErrValidation and leave the reading unchanged.
func (s *Store) Set(u Update) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.r
	for _, f := range []struct {
		name string
		v    *float64
		dst  *float64
	}{
		{"voltage", u.Voltage, &next.Voltage},
		{"current", u.Current, &next.Current},
		{"frequency", u.Frequency, &next.Frequency},
		{"power", u.Power, &next.PowerKW},
	} {
		if f.v == nil {
			continue
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) || *f.v < 0 {
			return s.r, fmt.Errorf("%w: %s must be a non-negative number", model.ErrValidation, f.name)
		}
		*f.dst = *f.v
	}
	if u.Status != nil {
		if *u.Status != 0 && *u.Status != 1 {
			return s.r, fmt.Errorf("%w: status must be 0 or 1, got %d", model.ErrValidation, *u.Status)
		}
		next.Status = *u.Status
	}
	if u.Power == nil {
		next.PowerKW = next.Voltage * next.Current / 1000
	}
	next.LastUpdated = s.now()
	s.r = next
	return next, nil
}

// Reset restores the default reading.
func (s *Store) Reset() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r = s.defaults()
	return s.r
}

// Status evaluates the current reading.
func (s *Store) Status() Status {
	r := s.Get()
	st := Status{
		Connected:   r.Online(),
		Quality:     "offline",
		PowerKW:     r.PowerKW,
		Voltage:     r.Voltage,
		Frequency:   r.Frequency,
		LastUpdated: r.LastUpdated,
	}
	if st.Connected {
		st.Quality = "poor"
		if r.Voltage >= minVoltage && r.Voltage <= maxVoltage &&
			r.Frequency >= minFrequency && r.Frequency <= maxFrequency {
			st.Quality = "good"
		}
	}
	return st
}

// Apply copies the grid state of the reading into snap.
func (r Reading) Apply(snap *model.PowerSnapshot) {
	snap.GridOnline = r.Online()
	snap.GridPowerKW = r.PowerKW
}
