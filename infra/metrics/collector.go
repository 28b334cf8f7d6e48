package metrics

import (
	"context"

	"github.com/kilianp07/gridshed/core/events"
	coremetrics "github.com/kilianp07/gridshed/core/metrics"
	"github.com/kilianp07/gridshed/infra/logger"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

// StartPriorityCollector subscribes to priority events and forwards them to
// sinks able to record them. It stops when the context is canceled or the
// bus is closed.
func StartPriorityCollector(ctx context.Context, bus *eventbus.Bus[events.PriorityEvent], sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.PriorityChangeRecorder)
	if !ok {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe(0)
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordPriorityChange(ev); err != nil {
					log.Errorf("priority change metrics error: %v", err)
				}
			}
		}
	}()
}
