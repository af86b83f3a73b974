// Package history keeps an audit log of trigger delivery attempts in a
// SQLite database. The spool remains the source of truth for retries; the
// history exists so stuck or failing triggers are visible to an operator
// instead of only in logs.
package history

import "time"

// Attempt statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Attempt is one delivery attempt, successful or not.
type Attempt struct {
	JobID       string    `json:"job_id"`
	JobName     string    `json:"job_name"`
	Target      string    `json:"target"`
	FiredAt     time.Time `json:"fired_at"`
	AttemptedAt time.Time `json:"attempted_at"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Recorder receives delivery attempts. Recording is best-effort
// observability; implementations must never fail a delivery.
type Recorder interface {
	Record(a Attempt)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Attempt) {}
