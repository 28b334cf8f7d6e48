package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/gridshed/core/events"
	coremqtt "github.com/kilianp07/gridshed/core/mqtt"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/infra/logger"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Decisions []model.Decision
	Events    []events.PriorityEvent
	Fail      bool
	mu        sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishDecision records the decision or returns an error if configured to fail.
func (m *MockPublisher) PublishDecision(d model.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Decisions = append(m.Decisions, d)
	return nil
}

// PublishPriorityEvent records the event.
func (m *MockPublisher) PublishPriorityEvent(ev events.PriorityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Events = append(m.Events, ev)
	return nil
}

// Counts returns the number of recorded decisions and events.
func (m *MockPublisher) Counts() (decisions, priorityEvents int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Decisions), len(m.Events)
}

// Forward publishes every event received on the buses until ctx is canceled
// or both buses are closed. Publish errors are logged; the loop keeps going.
func Forward(ctx context.Context, p Publisher, decisions *eventbus.Bus[events.DecisionEvent], priorities *eventbus.Bus[events.PriorityEvent], log logger.Logger) {
	if log == nil {
		log = logger.NopLogger{}
	}
	var dch <-chan events.DecisionEvent
	var pch <-chan events.PriorityEvent
	if decisions != nil {
		dch = decisions.Subscribe(64)
		defer decisions.Unsubscribe(dch)
	}
	if priorities != nil {
		pch = priorities.Subscribe(0)
		defer priorities.Unsubscribe(pch)
	}
	for dch != nil || pch != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dch:
			if !ok {
				dch = nil
				continue
			}
			if err := p.PublishDecision(ev.Decision); err != nil {
				log.Errorf("mqtt decision publish failed: %v", err)
			}
		case ev, ok := <-pch:
			if !ok {
				pch = nil
				continue
			}
			if err := p.PublishPriorityEvent(ev); err != nil {
				log.Errorf("mqtt priority publish failed: %v", err)
			}
		}
	}
}
