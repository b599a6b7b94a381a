package hub

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
	"github.com/sentinelgraph/sentinel/pkg/query"
)

// Router builds the hub's HTTP control-plane surface (spec §6 "Hub ->
// CLI"): GET /api/v1/ps, GET /api/v1/why, POST /api/v1/fix, GET /metrics.
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/api/v1/ps", h.handlePS)
	r.Get("/api/v1/why", h.handleWhy)
	r.Get("/api/v1/diag", h.handleDiag)
	r.Post("/api/v1/fix", h.handleFix)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	l := log.WithComponent("hub-http")
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		l.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("request")
		next.ServeHTTP(w, req)
	})
}

func (h *Hub) handlePS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PS())
}

func (h *Hub) handleWhy(w http.ResponseWriter, r *http.Request) {
	pid, ok := h.resolvePID(r)
	if !ok {
		writeJSON(w, http.StatusOK, HostWhyResponse{WhyResponse: query.WhyResponse{NotFound: true}})
		return
	}
	writeJSON(w, http.StatusOK, h.Why(pid))
}

func (h *Hub) handleDiag(w http.ResponseWriter, r *http.Request) {
	pid, ok := h.resolvePID(r)
	if !ok {
		writeJSON(w, http.StatusOK, HostDiagResponse{DiagResponse: query.DiagResponse{WhyResponse: query.WhyResponse{NotFound: true}}})
		return
	}
	writeJSON(w, http.StatusOK, h.Diag(pid))
}

// fixRequest is the POST /api/v1/fix body (spec §6: "{target, op}").
type fixRequest struct {
	Target int    `json:"target"`
	Op     string `json:"op"`
}

func (h *Hub) handleFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Fix(req.Target, req.Op))
}

// resolvePID accepts either ?pid= or ?job_id=, resolving a job id to the
// pid of the first connected host's matching live process (spec §6:
// "why?pid=|job_id=").
func (h *Hub) resolvePID(r *http.Request) (int, bool) {
	if raw := r.URL.Query().Get("pid"); raw != "" {
		pid, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return pid, true
	}
	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		return h.findPIDByJobID(jobID)
	}
	return 0, false
}

func (h *Hub) findPIDByJobID(jobID string) (int, bool) {
	for _, hostID := range h.hostIDs() {
		snap, ok := h.snapshotOf(hostID)
		if !ok {
			continue
		}
		for _, n := range snap.Nodes {
			if n.Kind == graph.KindProcess && n.JobID == jobID {
				return n.PID, true
			}
		}
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
