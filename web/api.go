package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusResponse is the payload for GET /api/status: an overview of
// every breaker and protection relay the gateway currently tracks.
type statusResponse struct {
	Breakers   []interface{} `json:"breakers"`
	Protection []interface{} `json:"protection"`
}

func (h *handlers) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	breakers := h.managers.BreakerSnapshots()
	protection := h.managers.ProtectionSnapshots()

	resp := statusResponse{
		Breakers:   make([]interface{}, len(breakers)),
		Protection: make([]interface{}, len(protection)),
	}
	for i, b := range breakers {
		resp.Breakers[i] = b
	}
	for i, p := range protection {
		resp.Protection[i] = p
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleAPIBreaker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.managers.FindBreakerSnapshot(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) handleAPIProtection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := h.managers.FindProtectionSnapshot(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
