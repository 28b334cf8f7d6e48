package events

import "time"

// PriorityAction describes how the priority table changed.
type PriorityAction string

const (
	PriorityUpdated PriorityAction = "updated"
	PriorityReset   PriorityAction = "reset"
	PriorityLoaded  PriorityAction = "loaded"
)

// PriorityEvent is published whenever the current priority configuration
// changes. Persisted is false when the write to the store failed.
type PriorityEvent struct {
	Action    PriorityAction
	Category  string
	Name      string
	OldRank   int
	NewRank   int
	Persisted bool
	Time      time.Time
}
