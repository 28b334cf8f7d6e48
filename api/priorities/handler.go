// Package priorities exposes the priority registry over HTTP.
package priorities

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/core/priority"
)

// Registry is the subset of the priority registry served by the handler.
type Registry interface {
	Priorities() priority.Snapshot
	UpdatePriority(category priority.Category, name string, rank int) error
	ResetToDefault() error
	Persist() error
}

type updateRequest struct {
	Priority *int `json:"priority"`
}

type changeResponse struct {
	Status     string            `json:"status"`
	Warning    string            `json:"warning,omitempty"`
	Priorities priority.Snapshot `json:"priorities"`
}

// NewHandler serves
//
//	GET  /api/priorities
//	PUT  /api/priorities/{category}/{name}  {"priority": n}
//	POST /api/priorities/reset
//	POST /api/priorities/persist
//
// A change that could not be persisted is still applied and answered with
// 200 and a warning. persist retries the write and answers 503 when it fails
// again.
func NewHandler(reg Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/priorities", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Priorities())
	})
	mux.HandleFunc("PUT /api/priorities/{category}/{name}", func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if req.Priority == nil {
			writeError(w, http.StatusBadRequest, "priority is required")
			return
		}
		err := reg.UpdatePriority(priority.Category(r.PathValue("category")), r.PathValue("name"), *req.Priority)
		writeChange(w, reg, err)
	})
	mux.HandleFunc("POST /api/priorities/reset", func(w http.ResponseWriter, r *http.Request) {
		writeChange(w, reg, reg.ResetToDefault())
	})
	mux.HandleFunc("POST /api/priorities/persist", func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Persist(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, changeResponse{Status: "success", Priorities: reg.Priorities()})
	})
	return mux
}

func writeChange(w http.ResponseWriter, reg Registry, err error) {
	resp := changeResponse{Status: "success"}
	switch {
	case err == nil:
	case errors.Is(err, priority.ErrPersistence):
		resp.Warning = err.Error()
	case errors.Is(err, priority.ErrInvalidTarget):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Priorities = reg.Priorities()
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}
