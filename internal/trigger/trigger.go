// Package trigger defines the ephemeral "job is due" record and the
// file-backed spool that holds pending triggers between the evaluator that
// writes them and the watcher that delivers and deletes them.
package trigger

import "time"

// Trigger is a pending firing. Fields are copied from the job at fire time
// so that a later job edit cannot retroactively change a queued trigger.
type Trigger struct {
	JobID   string    `json:"jobId"`
	JobName string    `json:"jobName"`
	Target  string    `json:"target,omitempty"`
	Prompt  string    `json:"prompt"`
	OneShot bool      `json:"oneshot"`
	FiredAt time.Time `json:"firedAt"`
}
