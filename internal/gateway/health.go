package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "ok" or "degraded"
	Jobs    int    `json:"jobs"`
	Pending int    `json:"pending"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the spool is readable, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Jobs:   len(s.jobs.List()),
		}

		pending, err := s.spool.List()
		if err != nil {
			resp.Status = "degraded"
		} else {
			resp.Pending = len(pending)
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
