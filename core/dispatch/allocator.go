package dispatch

import (
	"sort"

	"github.com/kilianp07/gridshed/core/model"
)

// Allocation is the allocator output for one tick.
type Allocation struct {
	Statuses            map[string]model.Status
	Circuits            []model.CircuitDecision // in allocation order
	RemainingKW         float64
	DemandExceedsSupply bool
	TotalDemandKW       float64
}

// Allocator switches circuits ON or OFF under a capacity budget.
type Allocator interface {
	Allocate(availableKW float64, loads []model.MCBLoad) Allocation
}

// PriorityAllocator is a greedy admission controller. Loads are walked by
// (rank, declaration order, circuit id) and admitted while the running
// remainder covers them. The first load that does not fit is shed together
// with every load after it, so no circuit is ever served ahead of a
// higher-priority one. Loads are never partially served.
type PriorityAllocator struct{}

// Allocate implements Allocator. It is total over non-negative inputs.
func (PriorityAllocator) Allocate(availableKW float64, loads []model.MCBLoad) Allocation {
	sorted := make([]model.MCBLoad, len(loads))
	copy(sorted, loads)
	sortLoads(sorted)

	res := Allocation{
		Statuses: make(map[string]model.Status, len(sorted)),
		Circuits: make([]model.CircuitDecision, 0, len(sorted)),
	}
	remaining := availableKW
	// shedding latches at the first load that does not fit. A lower-priority
	// load is never ON while a higher-priority one is OFF, even if it would fit.
	shedding := false
	for _, l := range sorted {
		res.TotalDemandKW += l.PowerKW
		st := model.StatusOff
		if !shedding && remaining >= l.PowerKW {
			st = model.StatusOn
			remaining -= l.PowerKW
		} else {
			shedding = true
		}
		res.Statuses[l.ID] = st
		res.Circuits = append(res.Circuits, model.CircuitDecision{
			ID:       l.ID,
			PowerKW:  l.PowerKW,
			Rank:     l.Rank,
			Critical: l.Critical,
			Class:    l.Class,
			Status:   st,
		})
	}
	res.RemainingKW = remaining
	res.DemandExceedsSupply = res.TotalDemandKW > availableKW
	return res
}

// sortLoads orders loads deterministically regardless of input order.
func sortLoads(loads []model.MCBLoad) {
	sort.SliceStable(loads, func(i, j int) bool {
		a, b := loads[i], loads[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return naturalLess(a.ID, b.ID)
	})
}

// naturalLess compares identifiers so that embedded numbers sort by value:
// MCB_2 comes before MCB_10.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na, nb := trimZeros(a[si:i]), trimZeros(b[sj:j])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
