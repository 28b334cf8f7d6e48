package logging

import (
	"context"
	"time"

	"github.com/kilianp07/gridshed/core/model"
)

// LogRecord captures one shedding decision together with its inputs.
type LogRecord struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Snapshot  model.PowerSnapshot `json:"snapshot"`
	Draws     map[string]float64  `json:"draws"`
	Decision  model.Decision      `json:"decision"`
}

// LogQuery defines filters for retrieving records. Zero values match
// everything; Limit keeps the most recent records.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	Source    *model.Source
	CircuitID string
	Limit     int
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Match reports whether r satisfies q, ignoring Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Source != nil && r.Decision.SelectedSource != *q.Source {
		return false
	}
	if q.CircuitID != "" {
		if _, ok := r.Draws[q.CircuitID]; !ok {
			if _, ok := r.Decision.Statuses[q.CircuitID]; !ok {
				return false
			}
		}
	}
	return true
}

// limit keeps the last n records when n is positive.
func limit(recs []LogRecord, n int) []LogRecord {
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}
