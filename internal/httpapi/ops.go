package httpapi

import (
	"errors"
	"net/http"
	"strconv"
)

var errQueueDown = errors.New("import queue not running")

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.d.Store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if r.d.Queue != nil && !r.d.Queue.Running() {
		http.Error(w, errQueueDown.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	if r.d.Queue != nil {
		stats := r.d.Queue.Stats()
		r.d.Metrics.UpdateQueue(stats.Length, stats.Capacity, stats.Workers)
	}
	imports, err := r.d.Store.ListImports(req.Context(), 10)
	if err != nil {
		r.storeError(w, err)
		return
	}
	body := map[string]any{
		"metrics":   r.d.Metrics.Snapshot(),
		"sessions":  r.d.Sessions.Len(),
		"locations": r.d.Registry.Len(),
		"imports":   imports,
	}
	if r.d.Queue != nil {
		body["queue"] = r.d.Queue.Stats()
	}
	if r.d.Bus != nil {
		body["events_dropped"] = r.d.Bus.Dropped()
	}
	respondJSON(w, body)
}

func (r *Router) diagnostics(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.d.Store.ListDiagnostics(req.Context(), limit)
	if err != nil {
		r.storeError(w, err)
		return
	}
	respondJSON(w, list)
}
