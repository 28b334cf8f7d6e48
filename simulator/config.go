package main

import (
	"errors"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Interval time.Duration
	Ticks    int // zero publishes until interrupted

	Circuits    int
	CircuitKW   float64 // mean draw of one circuit
	SolarPeakKW float64
	WindMeanKW  float64
	DGKW        float64
	UPSKW       float64
	GridKW      float64
	OutageRate  float64 // probability per tick that the grid drops or comes back
	BatteryKWh  float64

	ProfileFile string
	Seed        int64
	Verbose     bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.Circuits <= 0 {
		return errors.New("circuits must be positive")
	}
	if c.OutageRate < 0 || c.OutageRate > 1 {
		return errors.New("outage-rate must be within [0,1]")
	}
	if c.BatteryKWh <= 0 {
		return errors.New("battery capacity must be positive")
	}
	return nil
}
