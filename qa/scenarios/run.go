package scenarios

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/core/logger"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/core/priority"
)

// TickReport is the outcome of one tick.
type TickReport struct {
	Index    int
	Name     string
	Decision model.Decision
	Failures []string
}

// Report collects the outcome of a scenario run.
type Report struct {
	Name  string
	Ticks []TickReport
}

// Failed reports whether any tick deviated from its expectation.
func (r Report) Failed() bool {
	for _, t := range r.Ticks {
		if len(t.Failures) > 0 {
			return true
		}
	}
	return false
}

// Failures returns every deviation prefixed with its tick.
func (r Report) Failures() []string {
	var out []string
	for _, t := range r.Ticks {
		label := fmt.Sprintf("tick %d", t.Index)
		if t.Name != "" {
			label += " (" + t.Name + ")"
		}
		for _, f := range t.Failures {
			out = append(out, label+": "+f)
		}
	}
	return out
}

// Run plays the ticks of sc through a DecisionManager backed by doc. The
// overrides of sc are applied to an in-memory registry, doc is never written.
func Run(ctx context.Context, sc *Scenario, doc priority.Document, log logger.Logger) (Report, error) {
	reg := priority.NewRegistry(priority.NewMemoryStore(&doc), nil, log)
	if err := reg.Load(); err != nil {
		return Report{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	for _, o := range sc.Overrides {
		if err := reg.UpdatePriority(priority.Category(o.Category), o.Name, o.Priority); err != nil {
			return Report{}, fmt.Errorf("scenario %s: override %s/%s: %w", sc.Name, o.Category, o.Name, err)
		}
	}

	mgr, err := dispatch.NewDecisionManager(reg, dispatch.PreferenceSelector{}, dispatch.PriorityAllocator{},
		dispatch.Config{Circuits: sc.Bindings}, log, nil)
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = mgr.Close() }()

	rep := Report{Name: sc.Name, Ticks: make([]TickReport, 0, len(sc.Ticks))}
	for i, t := range sc.Ticks {
		tr := TickReport{Index: i, Name: t.Name}
		d, err := mgr.Decide(ctx, t.Snapshot.ToModel(), t.Circuits)
		if err != nil {
			tr.Failures = checkError(t.Expected, err)
		} else {
			tr.Decision = d
			tr.Failures = check(t.Expected, d)
		}
		rep.Ticks = append(rep.Ticks, tr)
	}
	return rep, nil
}

func checkError(exp Expected, err error) []string {
	var want error
	switch exp.Error {
	case "":
		return []string{"unexpected error: " + err.Error()}
	case "no_load_data":
		want = model.ErrNoLoadData
	default:
		want = model.ErrValidation
	}
	if !errors.Is(err, want) {
		return []string{fmt.Sprintf("expected %s error, got %v", exp.Error, err)}
	}
	return nil
}

func check(exp Expected, d model.Decision) []string {
	var out []string
	if exp.Error != "" {
		out = append(out, fmt.Sprintf("expected %s error, got a decision", exp.Error))
	}
	if exp.Source != "" {
		want, _ := model.ParseSource(exp.Source)
		if d.SelectedSource != want {
			out = append(out, fmt.Sprintf("source %s, want %s", d.SelectedSource, want))
		}
	}
	for _, id := range exp.On {
		if st, ok := d.Statuses[id]; !ok || st != model.StatusOn {
			out = append(out, id+" should be ON")
		}
	}
	for _, id := range exp.Off {
		if st, ok := d.Statuses[id]; !ok || st != model.StatusOff {
			out = append(out, id+" should be OFF")
		}
	}
	if exp.RemainingKW != nil && math.Abs(d.RemainingKW-*exp.RemainingKW) > 1e-9 {
		out = append(out, fmt.Sprintf("remaining %.3f kW, want %.3f", d.RemainingKW, *exp.RemainingKW))
	}
	if exp.Shortfall != nil && d.DemandExceedsSupply != *exp.Shortfall {
		out = append(out, fmt.Sprintf("demand_exceeds_supply %t, want %t", d.DemandExceedsSupply, *exp.Shortfall))
	}
	return out
}
