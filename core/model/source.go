package model

import (
	"fmt"
	"strings"
)

// Source identifies a power supply feeding the facility.
type Source int

const (
	SourceGrid Source = iota
	SourceSolar
	SourceWind
	SourceDG
	SourceUPS
)

// FallbackSources lists the sources used when the grid is offline, in the
// preference order applied to ties.
var FallbackSources = []Source{SourceSolar, SourceWind, SourceDG, SourceUPS}

// String returns a human-readable representation of the source.
func (s Source) String() string {
	switch s {
	case SourceGrid:
		return "Grid"
	case SourceSolar:
		return "Solar"
	case SourceWind:
		return "Wind"
	case SourceDG:
		return "DG"
	case SourceUPS:
		return "UPS"
	default:
		return "unknown"
	}
}

// Field returns the dataset column name of the source, e.g. "Solar_Power(kW)".
func (s Source) Field() string {
	return s.String() + "_Power(kW)"
}

// ParseSource accepts both the short name and the dataset column name.
func ParseSource(v string) (Source, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "_Power(kW)")
	switch strings.ToLower(v) {
	case "grid":
		return SourceGrid, true
	case "solar":
		return SourceSolar, true
	case "wind":
		return SourceWind, true
	case "dg":
		return SourceDG, true
	case "ups":
		return SourceUPS, true
	default:
		return 0, false
	}
}

func (s Source) MarshalText() ([]byte, error) {
	if s < SourceGrid || s > SourceUPS {
		return nil, fmt.Errorf("invalid source %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(b []byte) error {
	v, ok := ParseSource(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, string(b))
	}
	*s = v
	return nil
}
