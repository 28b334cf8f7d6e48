// Package grid exposes the operator-entered grid reading over HTTP. Every
// response uses the {"status": ..., "data": ...} envelope.
package grid

import (
	"encoding/json"
	"errors"
	"net/http"

	coregrid "github.com/kilianp07/gridshed/core/grid"
	"github.com/kilianp07/gridshed/core/model"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// NewHandler serves
//
//	GET  /api/grid/power
//	POST /api/grid/power   {"voltage", "current", "frequency", "status", "power"}
//	GET  /api/grid/status
//	POST /api/grid/reset
func NewHandler(store *coregrid.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/grid/power", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Status: "success", Data: store.Get()})
	})
	mux.HandleFunc("POST /api/grid/power", func(w http.ResponseWriter, r *http.Request) {
		var u coregrid.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid JSON body: " + err.Error()})
			return
		}
		reading, err := store.Set(u)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, model.ErrValidation) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, envelope{Status: "error", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "grid power updated", Data: reading})
	})
	mux.HandleFunc("GET /api/grid/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Status: "success", Data: store.Status()})
	})
	mux.HandleFunc("POST /api/grid/reset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "grid power reset", Data: store.Reset()})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
