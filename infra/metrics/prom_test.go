package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/gridshed/core/events"
	coremetrics "github.com/kilianp07/gridshed/core/metrics"
	"github.com/kilianp07/gridshed/core/factory"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

func TestPromSinkRecordDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.RecordDecision(sampleDecision(time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	if v := testutil.ToFloat64(sink.circuit.WithLabelValues("MCB_1", "hospital_equipment", "true")); v != 1 {
		t.Errorf("MCB_1 gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.circuit.WithLabelValues("MCB_2", "", "false")); v != 0 {
		t.Errorf("MCB_2 gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.available.WithLabelValues("Solar")); v != 8 {
		t.Errorf("solar gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.remaining); v != 3 {
		t.Errorf("remaining gauge = %v", v)
	}
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = a.RecordPriorityChange(events.PriorityEvent{Action: events.PriorityReset, Persisted: true})
	if v := testutil.ToFloat64(b.changes.WithLabelValues("reset", "true")); v != 1 {
		t.Errorf("shared counter = %v", v)
	}
}

func TestPriorityCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	bus := eventbus.New[events.PriorityEvent]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartPriorityCollector(ctx, bus, coremetrics.NewMultiSink(sink), nil)

	bus.Publish(events.PriorityEvent{Action: events.PriorityUpdated, Persisted: false})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(sink.changes.WithLabelValues("updated", "false")) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("priority change not recorded")
}

func TestFactoryRegistrations(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("nop sink: %v", err)
	}
	if _, ok := s.(coremetrics.NopSink); !ok {
		t.Fatalf("unexpected sink %T", s)
	}
	if _, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "statsd"}}); err == nil {
		t.Fatalf("expected unknown type error")
	}
}
