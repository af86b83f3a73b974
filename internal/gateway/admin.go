package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/cronspool/internal/history"
	"github.com/flemzord/cronspool/internal/job"
)

// defaultHistoryLimit bounds GET /api/history when no limit is given.
const defaultHistoryLimit = 50

// createJobRequest is the JSON payload for POST /api/jobs.
type createJobRequest struct {
	ID       string            `json:"id,omitempty"`
	Name     string            `json:"name"`
	Schedule string            `json:"schedule"`
	Target   string            `json:"target,omitempty"`
	Prompt   string            `json:"prompt"`
	OneShot  bool              `json:"oneshot,omitempty"`
	Enabled  *bool             `json:"enabled,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// updateJobRequest is the JSON payload for PATCH /api/jobs/{id}.
// Absent fields leave the stored value untouched.
type updateJobRequest struct {
	Name     *string           `json:"name,omitempty"`
	Schedule *string           `json:"schedule,omitempty"`
	Target   *string           `json:"target,omitempty"`
	Prompt   *string           `json:"prompt,omitempty"`
	OneShot  *bool             `json:"oneshot,omitempty"`
	Enabled  *bool             `json:"enabled,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// handleListJobs returns all jobs as JSON.
func (s *Server) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := s.jobs.List()
		if jobs == nil {
			jobs = []job.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

// handleGetJob returns a single job by id.
func (s *Server) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		j, ok := s.jobs.Get(id)
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, j)
	}
}

// handleCreateJob creates a job from the request body.
func (s *Server) handleCreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		created, err := s.jobs.Create(job.CreateInput{
			ID:       req.ID,
			Name:     req.Name,
			Schedule: req.Schedule,
			Target:   req.Target,
			Prompt:   req.Prompt,
			OneShot:  req.OneShot,
			Enabled:  enabled,
			Metadata: req.Metadata,
		})
		if err != nil {
			writeJobError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

// handleUpdateJob merges the request body into an existing job.
func (s *Server) handleUpdateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req updateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}

		updated, err := s.jobs.Update(id, job.Update{
			Name:     req.Name,
			Schedule: req.Schedule,
			Target:   req.Target,
			Prompt:   req.Prompt,
			OneShot:  req.OneShot,
			Enabled:  req.Enabled,
			Metadata: req.Metadata,
		})
		if err != nil {
			writeJobError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

// handleDeleteJob removes a job by id.
func (s *Server) handleDeleteJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		existed, err := s.jobs.Delete(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !existed {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSetEnabled flips the enabled flag on a job.
func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		updated, err := s.jobs.Update(id, job.Update{Enabled: &enabled})
		if err != nil {
			writeJobError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// handleHistory returns recent delivery attempts, newest first.
func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			http.Error(w, "history not configured", http.StatusNotFound)
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		attempts, err := s.history.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("gateway: history query failed", "error", err)
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		if attempts == nil {
			attempts = []history.Attempt{}
		}

		writeJSON(w, http.StatusOK, attempts)
	}
}

// writeJobError maps repository sentinel errors to HTTP status codes.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		http.Error(w, "job not found", http.StatusNotFound)
	case errors.Is(err, job.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, job.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
