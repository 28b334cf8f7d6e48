package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/core/logger"
	"github.com/kilianp07/gridshed/core/metrics"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/core/monitoring"
	"github.com/kilianp07/gridshed/core/prediction"
	"github.com/kilianp07/gridshed/core/priority"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

// PriorityReader provides the priority snapshot used for one decision.
type PriorityReader interface {
	Priorities() priority.Snapshot
}

// DecisionManager composes source selection and load shedding. It is the only
// entry point through which callers obtain decisions and holds no state
// between ticks besides its collaborators.
type DecisionManager struct {
	registry  PriorityReader
	selector  SourceSelector
	allocator Allocator
	cfg       Config
	logger    logger.Logger
	metrics   metrics.MetricsSink

	mu        sync.RWMutex
	predictor prediction.Predictor
	store     logging.LogStore
	bus       *eventbus.Bus[events.DecisionEvent]
	monitor   monitoring.Monitor

	now   func() time.Time
	newID func() string
}

// NewDecisionManager creates a new manager. A nil sink disables external
// metrics; the Prometheus collectors of this package are always updated.
func NewDecisionManager(reg PriorityReader, sel SourceSelector, alloc Allocator, cfg Config, log logger.Logger, sink metrics.MetricsSink) (*DecisionManager, error) {
	if reg == nil || sel == nil || alloc == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewDecisionManager")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	return &DecisionManager{
		registry:  reg,
		selector:  sel,
		allocator: alloc,
		cfg:       cfg,
		logger:    logger.OrNop(log),
		metrics:   sink,
		monitor:   monitoring.NopMonitor{},
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}, nil
}

// SetPredictor configures the advisory predictor. Nil disables predictions.
func (m *DecisionManager) SetPredictor(p prediction.Predictor) {
	m.mu.Lock()
	m.predictor = p
	m.mu.Unlock()
}

// SetLogStore configures the store used to persist decisions.
func (m *DecisionManager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetEventBus configures the bus notified after every decision.
func (m *DecisionManager) SetEventBus(bus *eventbus.Bus[events.DecisionEvent]) {
	m.mu.Lock()
	m.bus = bus
	m.mu.Unlock()
}

// SetMonitor configures error reporting for absorbed failures.
func (m *DecisionManager) SetMonitor(mon monitoring.Monitor) {
	m.mu.Lock()
	m.monitor = monitoring.OrNop(mon)
	m.mu.Unlock()
}

// Decide selects the supplying source for snap and switches every circuit in
// draws ON or OFF. Errors wrap model.ErrNoLoadData or model.ErrValidation;
// nothing is recorded for a rejected request.
func (m *DecisionManager) Decide(ctx context.Context, snap model.PowerSnapshot, draws map[string]float64) (model.Decision, error) {
	start := time.Now()
	if err := validateDraws(draws); err != nil {
		m.reject(err)
		return model.Decision{}, err
	}
	if err := snap.Validate(); err != nil {
		m.reject(err)
		return model.Decision{}, err
	}

	prio := m.registry.Priorities()
	loads := m.buildLoads(prio, draws)
	src, available := m.selector.Select(snap)
	alloc := m.allocator.Allocate(available, loads)

	d := model.Decision{
		ID:        m.newID(),
		Timestamp: m.now(),
		AllocationResult: model.AllocationResult{
			SelectedSource:      src,
			TotalAvailableKW:    available,
			Statuses:            alloc.Statuses,
			RemainingKW:         alloc.RemainingKW,
			DemandExceedsSupply: alloc.DemandExceedsSupply,
			TotalDemandKW:       alloc.TotalDemandKW,
		},
		GridOnline:  snap.GridOnline,
		Circuits:    alloc.Circuits,
		Consumption: consumption(snap),
	}

	m.mu.RLock()
	pred, store, bus, mon := m.predictor, m.store, m.bus, m.monitor
	m.mu.RUnlock()

	if pred != nil {
		d.Prediction = m.predict(ctx, pred, snap, loads)
	}

	decisionsTotal.WithLabelValues(src.String()).Inc()
	decisionLatency.Observe(time.Since(start).Seconds())
	for _, c := range d.Circuits {
		if c.Status == model.StatusOff {
			circuitsShed.WithLabelValues(criticalLabel(c.Critical)).Inc()
		}
	}
	if d.DemandExceedsSupply {
		shortfallTotal.Inc()
	}
	if err := m.metrics.RecordDecision(d); err != nil {
		m.logger.Errorf("decision metrics error: %v", err)
	}

	if shed := d.Shed(); len(shed) > 0 {
		m.logger.Infof("decision %s: source %s, %.2f kW available, shed %v", d.ID, src, available, shed)
	} else {
		m.logger.Debugf("decision %s: source %s, %.2f kW available, all circuits on", d.ID, src, available)
	}

	if store != nil {
		rec := logging.LogRecord{ID: d.ID, Timestamp: d.Timestamp, Snapshot: snap, Draws: copyDraws(draws), Decision: d}
		if err := store.Append(ctx, rec); err != nil {
			m.logger.Errorf("decision log append failed: %v", err)
			mon.CaptureException(err, map[string]string{"component": "decision_log"})
		}
	}
	if bus != nil {
		bus.Publish(events.DecisionEvent{Decision: d})
	}
	return d, nil
}

// predict evaluates the advisory model. Failures are logged and the decision
// proceeds without a prediction.
func (m *DecisionManager) predict(ctx context.Context, p prediction.Predictor, snap model.PowerSnapshot, loads []model.MCBLoad) *model.Prediction {
	f := prediction.Features{
		SolarKW:       snap.SolarKW,
		WindKW:        snap.WindKW,
		DGKW:          snap.DGKW,
		UPSKW:         snap.UPSKW,
		BatteryPct:    snap.BatteryPct,
		TotalDemandKW: snap.TotalDemandKW,
	}
	for _, l := range loads {
		if l.Critical {
			f.CriticalLoadKW += l.PowerKW
		} else {
			f.NonCriticalLoadKW += l.PowerKW
		}
	}
	res, err := p.Predict(ctx, f)
	if err != nil {
		m.logger.Warnf("prediction failed: %v", err)
		return nil
	}
	label := res.SourceLabel
	if snap.GridOnline {
		label = model.SourceGrid.Field()
	}
	return &model.Prediction{PriorityScore: res.PriorityScore, SourceLabel: label}
}

func (m *DecisionManager) reject(err error) {
	reason := "validation"
	if errors.Is(err, model.ErrNoLoadData) {
		reason = "no_load_data"
	}
	decisionRejected.WithLabelValues(reason).Inc()
	m.logger.Warnw("decision rejected", map[string]any{"reason": reason, "error": err.Error()})
}

// Close releases the log store and the event bus.
func (m *DecisionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus != nil {
		m.bus.Close()
		m.bus = nil
	}
	if m.store != nil {
		err := m.store.Close()
		m.store = nil
		return err
	}
	return nil
}

func validateDraws(draws map[string]float64) error {
	if len(draws) == 0 {
		return fmt.Errorf("%w: at least one circuit draw is required", model.ErrNoLoadData)
	}
	for id, kw := range draws {
		if id == "" {
			return fmt.Errorf("%w: circuit id must not be empty", model.ErrValidation)
		}
		if math.IsNaN(kw) || math.IsInf(kw, 0) || kw < 0 {
			return fmt.Errorf("%w: draw of %s must be a non-negative number, got %v", model.ErrValidation, id, kw)
		}
	}
	return nil
}

// DrawsFromList converts caller supplied draws into the map consumed by
// Decide, rejecting duplicate identifiers.
func DrawsFromList(list []model.CircuitDraw) (map[string]float64, error) {
	out := make(map[string]float64, len(list))
	for _, c := range list {
		if _, dup := out[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate circuit id %q", model.ErrValidation, c.ID)
		}
		out[c.ID] = c.PowerKW
	}
	return out, nil
}

func copyDraws(d map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
