package dispatch

import (
	"strconv"

	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/core/priority"
)

// buildLoads attaches rank, criticality and declaration order to every draw
// using one registry snapshot. A circuit binds to the class configured for
// it, or to the class sharing its id. Unbound circuits are non-critical and
// ranked after every class by their numeric suffix.
func (m *DecisionManager) buildLoads(snap priority.Snapshot, draws map[string]float64) []model.MCBLoad {
	loads := make([]model.MCBLoad, 0, len(draws))
	unboundOrder := snap.Size()
	for id, kw := range draws {
		l := model.MCBLoad{ID: id, PowerKW: kw}
		class, bound := m.cfg.Circuits[id]
		if !bound {
			class = id
		}
		if res, ok := snap.Resolve(class); ok {
			l.Class = res.Entry.Name
			l.Rank = res.Entry.Priority
			l.Critical = res.Category == priority.Critical
			l.Order = res.Index
		} else {
			if bound {
				m.logger.Warnw("circuit bound to unknown priority class", map[string]any{"circuit": id, "class": class})
			}
			l.Rank = m.cfg.RankBase()
			if n, ok := circuitNumber(id); ok {
				l.Rank += n
			}
			l.Order = unboundOrder
		}
		loads = append(loads, l)
	}
	return loads
}

// circuitNumber returns the last run of digits in id, e.g. 4 for "MCB_4".
func circuitNumber(id string) (int, bool) {
	end := len(id)
	for end > 0 && !isDigit(id[end-1]) {
		end--
	}
	start := end
	for start > 0 && isDigit(id[start-1]) {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(id[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
