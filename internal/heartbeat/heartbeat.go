// Package heartbeat defines the standing heartbeat job: its well-known
// identifier, default cadence and prompt, and an optional quiet-hours window
// during which the evaluator holds its firings.
package heartbeat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/cronspool/internal/job"
)

// ErrInvalidQuiet reports a malformed quiet-hours string.
var ErrInvalidQuiet = errors.New("heartbeat: invalid quiet hours format")

// Well-known heartbeat job settings.
const (
	// JobID is the reserved identifier the service looks up when ensuring
	// the heartbeat job exists.
	JobID = "heartbeat"

	// DefaultSchedule fires the heartbeat every half hour.
	DefaultSchedule = "*/30 * * * *"

	// DefaultFileName is the workspace file the heartbeat prompt points at.
	DefaultFileName = "HEARTBEAT.md"

	// MetadataFileKey is the job metadata key holding the heartbeat file path.
	MetadataFileKey = "heartbeatFile"
)

// DefaultPrompt builds the standing heartbeat instruction for a given
// heartbeat file path.
func DefaultPrompt(file string) string {
	return fmt.Sprintf(
		"Read %s if it exists. Work through anything that needs attention, then reply with a short status. If nothing needs attention, reply HEARTBEAT_OK.",
		file,
	)
}

// CreateInput assembles the repository input for the standing heartbeat job.
// Empty schedule, prompt, or file fall back to the defaults above.
func CreateInput(target, schedule, prompt, file string) job.CreateInput {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if file == "" {
		file = DefaultFileName
	}
	if prompt == "" {
		prompt = DefaultPrompt(file)
	}
	return job.CreateInput{
		ID:       JobID,
		Name:     "heartbeat",
		Schedule: schedule,
		Target:   target,
		Prompt:   prompt,
		Enabled:  true,
		Metadata: map[string]string{MetadataFileKey: file},
	}
}

// QuietHours defines a blackout window during which the heartbeat is held.
// Format: "HH:MM-HH:MM" (24-hour). Supports midnight wrap (e.g., "23:00-07:00").
type QuietHours struct {
	Start time.Duration // offset from midnight
	End   time.Duration
}

// ParseQuietHours parses a "HH:MM-HH:MM" string into QuietHours.
func ParseQuietHours(s string) (QuietHours, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return QuietHours{}, fmt.Errorf("%w: expected HH:MM-HH:MM, got %q", ErrInvalidQuiet, s)
	}

	start, err := parseTimeOffset(strings.TrimSpace(parts[0]))
	if err != nil {
		return QuietHours{}, fmt.Errorf("%w: start: %w", ErrInvalidQuiet, err)
	}

	end, err := parseTimeOffset(strings.TrimSpace(parts[1]))
	if err != nil {
		return QuietHours{}, fmt.Errorf("%w: end: %w", ErrInvalidQuiet, err)
	}

	return QuietHours{Start: start, End: end}, nil
}

// parseTimeOffset parses "HH:MM" into a Duration from midnight.
func parseTimeOffset(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	var h, m int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("invalid hour: %q", parts[0])
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("invalid minute: %q", parts[1])
	}

	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %02d:%02d", h, m)
	}

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// IsQuiet reports whether t falls within the quiet window.
// The caller is responsible for converting t to the desired timezone.
func (q QuietHours) IsQuiet(t time.Time) bool {
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	if q.Start <= q.End {
		// Normal range: e.g., 02:00-06:00
		return offset >= q.Start && offset < q.End
	}
	// Midnight wrap: e.g., 23:00-07:00
	return offset >= q.Start || offset < q.End
}

// Gate holds heartbeat firings during quiet hours. Jobs other than the
// heartbeat always pass.
type Gate struct {
	Quiet    *QuietHours    // nil = no quiet hours
	Timezone *time.Location // nil = UTC
}

// Allow implements the evaluator's gate contract.
func (g Gate) Allow(j job.Job, now time.Time) bool {
	if j.ID != JobID || g.Quiet == nil {
		return true
	}
	loc := g.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return !g.Quiet.IsQuiet(now.In(loc))
}
