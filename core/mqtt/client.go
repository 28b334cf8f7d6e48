// Package mqtt defines the outbound broadcast of decisions. Messages are
// advisory: downstream controllers decide whether to act on them.
package mqtt

import (
	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/core/model"
)

// Publisher broadcasts decisions and priority table changes.
type Publisher interface {
	// PublishDecision sends the decision summary and one status message per
	// circuit.
	PublishDecision(d model.Decision) error

	// PublishPriorityEvent sends a priority table change.
	PublishPriorityEvent(ev events.PriorityEvent) error
}
