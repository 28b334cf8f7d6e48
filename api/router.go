// Package api assembles the HTTP surface of the service.
package api

import (
	"net/http"

	apidispatch "github.com/kilianp07/gridshed/api/dispatch"
	apigrid "github.com/kilianp07/gridshed/api/grid"
	apipriorities "github.com/kilianp07/gridshed/api/priorities"
	"github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/grid"
)

// Deps are the collaborators served by the router. Nil optional fields leave
// their routes unregistered.
type Deps struct {
	Decider      apidispatch.Decider
	Priorities   apipriorities.Registry
	Grid         *grid.Store
	History      logging.LogStore // optional
	HistoryToken string
	Stream       http.Handler // optional websocket stream
	Metrics      http.Handler // optional /metrics handler
}

// NewRouter returns the API handler with CORS headers applied.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	if d.Grid == nil {
		d.Grid = grid.NewStore()
	}

	mux.Handle("POST /api/decisions", apidispatch.NewDecisionHandler(d.Decider))
	mux.Handle("POST /predict", apidispatch.NewPredictHandler(d.Decider, d.Grid))
	if d.History != nil {
		mux.Handle("GET /api/decisions/history", apidispatch.NewHistoryHandler(d.History, d.HistoryToken))
	}
	if d.Stream != nil {
		mux.Handle("GET /api/decisions/stream", d.Stream)
	}

	prio := apipriorities.NewHandler(d.Priorities)
	mux.Handle("/api/priorities", prio)
	mux.Handle("/api/priorities/", prio)

	g := apigrid.NewHandler(d.Grid)
	mux.Handle("/api/grid/", g)

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return corsMiddleware(mux)
}

// corsMiddleware lets the browser dashboard call the API from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
