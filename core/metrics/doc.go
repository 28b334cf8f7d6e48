// Package metrics defines the sinks that receive every decision and priority
// change for observability. Implementations such as the Prometheus and
// InfluxDB sinks live in infra/metrics and register themselves in the sink
// factory; NewMetricsSink combines several configured sinks into a MultiSink.
package metrics
