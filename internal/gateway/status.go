package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/cronspool/internal/trigger"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Jobs             int     `json:"jobs"`
	EnabledJobs      int     `json:"enabled_jobs"`
	Pending          int     `json:"pending"`
	OldestPendingSec float64 `json:"oldest_pending_seconds,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status. The oldest
// pending age makes stuck triggers visible: a spool that only ever grows
// shows up here long before anyone reads the logs.
func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		now := s.now()
		resp := StatusResponse{
			UptimeSeconds: now.Sub(s.startedAt).Truncate(time.Second).Seconds(),
		}

		for _, j := range s.jobs.List() {
			resp.Jobs++
			if j.Enabled {
				resp.EnabledJobs++
			}
		}

		pending, err := s.spool.List()
		if err == nil {
			resp.Pending = len(pending)
			var oldest time.Duration
			for _, name := range pending {
				t, err := s.spool.Read(name)
				if err != nil {
					continue
				}
				if age := trigger.Age(t, now); age > oldest {
					oldest = age
				}
			}
			if oldest > 0 {
				resp.OldestPendingSec = oldest.Truncate(time.Second).Seconds()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
