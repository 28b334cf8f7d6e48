// Package dispatch exposes decisions over HTTP: the native decision endpoint,
// the legacy flat prediction payload and the decision history.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	coredispatch "github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/core/model"
)

// Decider computes a decision for one tick.
type Decider interface {
	Decide(ctx context.Context, snap model.PowerSnapshot, draws map[string]float64) (model.Decision, error)
}

// DecisionRequest is the body of POST /api/decisions.
type DecisionRequest struct {
	Snapshot model.PowerSnapshot `json:"snapshot"`
	Circuits []model.CircuitDraw `json:"circuits"`
}

// NewDecisionHandler returns the handler of POST /api/decisions.
func NewDecisionHandler(d Decider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req DecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		draws, err := coredispatch.DrawsFromList(req.Circuits)
		if err != nil {
			writeDecisionError(w, err)
			return
		}
		dec, err := d.Decide(r.Context(), req.Snapshot, draws)
		if err != nil {
			writeDecisionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dec)
	})
}

func writeDecisionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrNoLoadData) {
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}
