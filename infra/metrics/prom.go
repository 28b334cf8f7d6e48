package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/gridshed/core/events"
	coremetrics "github.com/kilianp07/gridshed/core/metrics"
	"github.com/kilianp07/gridshed/core/model"
)

// PromSink exposes the most recent decision as Prometheus gauges.
type PromSink struct {
	circuit   *prometheus.GaugeVec
	available *prometheus.GaugeVec
	remaining prometheus.Gauge
	changes   *prometheus.CounterVec
}

// NewPromSink registers decision gauges on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	circuit := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shedding_circuit_on",
		Help: "1 when the circuit was kept on by the last decision, 0 when shed",
	}, []string{"circuit_id", "class", "critical"})
	available := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shedding_source_power_kw",
		Help: "Power reported per source in the last decision",
	}, []string{"source"})
	remaining := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shedding_remaining_kw",
		Help: "Headroom left after the last allocation",
	})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "priority_changes_total",
		Help: "Priority table changes by action and persistence outcome",
	}, []string{"action", "persisted"})

	var err error
	if circuit, err = register(reg, circuit); err != nil {
		return nil, err
	}
	if available, err = register(reg, available); err != nil {
		return nil, err
	}
	if remaining, err = register(reg, remaining); err != nil {
		return nil, err
	}
	if changes, err = register(reg, changes); err != nil {
		return nil, err
	}
	return &PromSink{circuit: circuit, available: available, remaining: remaining, changes: changes}, nil
}

// register returns the already registered collector when c was registered
// by an earlier sink.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDecision implements coremetrics.MetricsSink.
func (s *PromSink) RecordDecision(d model.Decision) error {
	s.circuit.Reset()
	for _, c := range d.Circuits {
		v := 0.0
		if c.Status == model.StatusOn {
			v = 1
		}
		s.circuit.WithLabelValues(c.ID, c.Class, criticalLabel(c.Critical)).Set(v)
	}
	s.available.WithLabelValues(model.SourceSolar.String()).Set(d.Consumption.SolarKW)
	s.available.WithLabelValues(model.SourceWind.String()).Set(d.Consumption.WindKW)
	s.available.WithLabelValues(model.SourceDG.String()).Set(d.Consumption.DGKW)
	s.available.WithLabelValues(model.SourceUPS.String()).Set(d.Consumption.UPSKW)
	s.available.WithLabelValues(model.SourceGrid.String()).Set(d.Consumption.GridKW)
	s.remaining.Set(d.RemainingKW)
	return nil
}

// RecordPriorityChange implements coremetrics.PriorityChangeRecorder.
func (s *PromSink) RecordPriorityChange(ev events.PriorityEvent) error {
	s.changes.WithLabelValues(string(ev.Action), criticalLabel(ev.Persisted)).Inc()
	return nil
}

var _ coremetrics.PriorityChangeRecorder = (*PromSink)(nil)

func criticalLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
