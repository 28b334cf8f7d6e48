package model

import (
	"fmt"
	"strings"
)

// Status is the binary switching decision for a circuit.
type Status int

const (
	StatusOff Status = iota
	StatusOn
)

func (s Status) String() string {
	if s == StatusOn {
		return "ON"
	}
	return "OFF"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "ON", "1":
		*s = StatusOn
	case "OFF", "0":
		*s = StatusOff
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, string(b))
	}
	return nil
}

// CircuitDraw is the caller supplied draw of one MCB for the current tick.
type CircuitDraw struct {
	ID      string  `json:"id"`
	PowerKW float64 `json:"power_kw"`
}

// MCBLoad is a circuit annotated with its priority for one allocation.
type MCBLoad struct {
	ID       string
	PowerKW  float64
	Rank     int    // lower is served first
	Critical bool   // derived from the registry category
	Class    string // registry class the circuit is bound to, empty when unbound
	Order    int    // declaration index of the class, breaks rank ties
}
