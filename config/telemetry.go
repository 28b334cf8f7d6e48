package config

import (
	"fmt"
	"strings"
)

// TelemetryConfig holds configuration for the MQTT measurement ingestor.
// Every message received on Topic triggers one decision.
type TelemetryConfig struct {
	Enabled bool   `json:"enabled"`
	Topic   string `json:"topic"`
	QoS     byte   `json:"qos"`
	// TimeoutSeconds bounds the decision triggered by one message.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies the default topic.
func (c *TelemetryConfig) SetDefaults() {
	c.Topic = strings.TrimSpace(c.Topic)
	if c.Topic == "" {
		c.Topic = "gridshed/measurements"
	}
}

// Validate checks the QoS level.
func (c TelemetryConfig) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("telemetry: qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}
