package metrics

import "github.com/kilianp07/gridshed/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is the listen address of the /metrics endpoint when it
	// is served separately from the API. Empty serves it on the API server.
	PrometheusAddr string `json:"prometheus_addr"`
}
