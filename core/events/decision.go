package events

import "github.com/kilianp07/gridshed/core/model"

// DecisionEvent is published after every successful decision.
type DecisionEvent struct {
	Decision model.Decision
}
