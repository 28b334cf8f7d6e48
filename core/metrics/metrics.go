package metrics

import (
	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/core/model"
)

// MetricsSink records decisions for observability purposes.
type MetricsSink interface {
	RecordDecision(d model.Decision) error
}

// PriorityChangeRecorder is implemented by sinks able to record priority
// table changes.
type PriorityChangeRecorder interface {
	RecordPriorityChange(ev events.PriorityEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(model.Decision) error              { return nil }
func (NopSink) RecordPriorityChange(events.PriorityEvent) error { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards the decision to all sinks, returning the first error.
func (m *MultiSink) RecordDecision(d model.Decision) error {
	for _, s := range m.Sinks {
		if err := s.RecordDecision(d); err != nil {
			return err
		}
	}
	return nil
}

// RecordPriorityChange forwards the event to sinks supporting it.
func (m *MultiSink) RecordPriorityChange(ev events.PriorityEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PriorityChangeRecorder); ok {
			if err := rec.RecordPriorityChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
