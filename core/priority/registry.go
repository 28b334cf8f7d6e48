package priority

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/core/logger"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

// Registry owns the active priority configuration. Reads may run concurrently;
// updates and resets are exclusive and include the single persistence attempt.
type Registry struct {
	mu       sync.RWMutex
	defaults Document
	current  Document
	baseline Store
	override Store
	log      logger.Logger
	bus      *eventbus.Bus[events.PriorityEvent]
	now      func() time.Time
}

// NewRegistry creates a registry reading its default configuration from
// baseline and persisting operator changes to override. A nil override keeps
// changes in memory only. Until Load is called the built-in baseline is active.
func NewRegistry(baseline, override Store, log logger.Logger) *Registry {
	if override == nil {
		override = NewMemoryStore(nil)
	}
	b := Builtin()
	return &Registry{
		defaults: b,
		current:  b.Clone(),
		baseline: baseline,
		override: override,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// SetEventBus configures the bus notified on every configuration change.
func (r *Registry) SetEventBus(bus *eventbus.Bus[events.PriorityEvent]) {
	r.mu.Lock()
	r.bus = bus
	r.mu.Unlock()
}

// Load reads the default and override documents. It never leaves the registry
// unusable: on any read or parse failure the built-in baseline is installed and
// an error wrapping ErrConfigLoad is returned for diagnostics. A missing
// override is initialised from the default and persisted immediately.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.baseline == nil {
		return r.fallback(errors.New("no default priority store configured"))
	}
	def, err := r.baseline.Read()
	if err == nil {
		err = def.Validate()
	}
	if err != nil {
		return r.fallback(fmt.Errorf("default priorities: %w", err))
	}

	ov, err := r.override.Read()
	switch {
	case errors.Is(err, ErrNotFound):
		r.defaults = def
		r.current = def.Clone()
		r.log.Infof("no priority override found, initialising from defaults")
		if werr := r.override.Write(r.current); werr != nil {
			r.log.Warnw("initial priority override write failed", map[string]any{"error": werr.Error()})
			r.publishLocked(events.PriorityEvent{Action: events.PriorityLoaded})
			return fmt.Errorf("%w: %w", ErrPersistence, werr)
		}
	case err != nil:
		return r.fallback(fmt.Errorf("priority override: %w", err))
	default:
		if verr := ov.Validate(); verr != nil {
			return r.fallback(fmt.Errorf("priority override: %w", verr))
		}
		r.defaults = def
		r.current = r.merge(def, ov)
	}
	r.log.Infof("loaded %d critical and %d non-critical priority classes (version %s)",
		len(r.current.Critical), len(r.current.NonCritical), r.defaults.Metadata.Version)
	r.publishLocked(events.PriorityEvent{Action: events.PriorityLoaded, Persisted: true})
	return nil
}

func (r *Registry) fallback(cause error) error {
	r.log.Errorf("priority configuration unavailable, using built-in baseline: %v", cause)
	r.defaults = Builtin()
	r.current = r.defaults.Clone()
	r.publishLocked(events.PriorityEvent{Action: events.PriorityLoaded})
	return fmt.Errorf("%w: %w", ErrConfigLoad, cause)
}

// merge applies the ranks stored in ov to the classes declared in def. Class
// names and categories always come from def.
func (r *Registry) merge(def, ov Document) Document {
	out := def.Clone()
	for _, cat := range Categories {
		classes := out.Classes(cat)
		for _, e := range ov.Classes(cat) {
			i := classes.Index(e.Name)
			if i < 0 {
				r.log.Warnw("ignoring unknown class in priority override", map[string]any{"category": string(cat), "name": e.Name})
				continue
			}
			classes[i].Priority = e.Priority
		}
	}
	return out
}

// Priorities returns a deep copy of the registry state.
func (r *Registry) Priorities() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Metadata: r.defaults.Metadata,
		Current:  r.current.Clone(),
		Default:  r.defaults.Clone(),
	}
}

// UpdatePriority re-ranks an existing class. Unknown categories and negative
// ranks are validation errors, unknown names return ErrInvalidTarget. When the
// write fails the change stays in memory and ErrPersistence is returned.
func (r *Registry) UpdatePriority(category Category, name string, rank int) error {
	cat, err := ParseCategory(string(category))
	if err != nil {
		return err
	}
	if rank < 0 {
		return fmt.Errorf("%w: priority must be non-negative, got %d", model.ErrValidation, rank)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	classes := r.current.Classes(cat)
	i := classes.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s/%s", ErrInvalidTarget, cat, name)
	}
	old := classes[i].Priority
	classes[i].Priority = rank

	ev := events.PriorityEvent{Action: events.PriorityUpdated, Category: string(cat), Name: name, OldRank: old, NewRank: rank}
	err = r.persistLocked()
	ev.Persisted = err == nil
	r.publishLocked(ev)
	return err
}

// ResetToDefault replaces the current configuration with a copy of the
// default one and persists it. Persistence failures behave as in UpdatePriority.
func (r *Registry) ResetToDefault() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = r.defaults.Clone()
	err := r.persistLocked()
	r.publishLocked(events.PriorityEvent{Action: events.PriorityReset, Persisted: err == nil})
	return err
}

// Persist writes the current configuration again, typically after a previous
// ErrPersistence.
func (r *Registry) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked()
}

func (r *Registry) persistLocked() error {
	if err := r.override.Write(r.current); err != nil {
		r.log.Warnw("priority override write failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (r *Registry) publishLocked(ev events.PriorityEvent) {
	if r.bus == nil {
		return
	}
	ev.Time = r.now()
	r.bus.Publish(ev)
}
