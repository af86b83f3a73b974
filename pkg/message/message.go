// Package message defines the data contract between the scheduler and the
// agent sessions it delivers prompts to. Every delivered prompt is an
// EventMessage tagged with its origin, so downstream context rendering can
// distinguish an automated firing from a user-authored turn.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Origin discriminates who (or what) authored a message.
type Origin string

// Supported origins.
const (
	// OriginUser is a human-authored turn.
	OriginUser Origin = "user"
	// OriginSystem is an operator- or framework-injected instruction.
	OriginSystem Origin = "system"
	// OriginCron is a scheduled job firing.
	OriginCron Origin = "cron"
	// OriginHeartbeat is the standing heartbeat job firing.
	OriginHeartbeat Origin = "heartbeat"
)

// IsEvent reports whether the origin denotes an automated event rather
// than a user turn.
func (o Origin) IsEvent() bool {
	return o == OriginSystem || o == OriginCron || o == OriginHeartbeat
}

// EventMeta carries structured provenance for an automated message.
type EventMeta struct {
	// JobID is the identifier of the job that fired.
	JobID string `json:"job_id"`
	// JobName is the human label of the job at fire time.
	JobName string `json:"job_name"`
	// FiredAt is the instant the scheduler judged the job due.
	FiredAt time.Time `json:"fired_at"`
}

// EventMessage is a single message delivered to a session.
type EventMessage struct {
	ID        string     `json:"id"`
	Origin    Origin     `json:"origin"`
	Timestamp time.Time  `json:"timestamp"`
	Text      string     `json:"text"`
	Meta      *EventMeta `json:"meta,omitempty"`
}

// NewCronEvent builds a cron-origin EventMessage for a job firing.
func NewCronEvent(jobID, jobName, text string, firedAt time.Time) EventMessage {
	return EventMessage{
		ID:        uuid.NewString(),
		Origin:    OriginCron,
		Timestamp: time.Now().UTC(),
		Text:      text,
		Meta: &EventMeta{
			JobID:   jobID,
			JobName: jobName,
			FiredAt: firedAt,
		},
	}
}
