// Package job provides the durable store of job definitions. Each job is
// persisted as one pretty-printed JSON file under the jobs directory; the
// in-memory map and the backing files are kept in agreement by writing the
// file before committing the cached copy.
package job

import (
	"encoding/json"
	"strings"
	"time"
)

// slugMaxLen caps generated identifiers.
const slugMaxLen = 48

// Job is a persisted schedule definition.
type Job struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Schedule    string            `json:"schedule"`
	Target      string            `json:"target,omitempty"`
	Prompt      string            `json:"prompt"`
	OneShot     bool              `json:"oneshot"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"createdAt"`
	LastFiredAt *time.Time        `json:"lastFiredAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// Extra holds unknown fields from the job file so that records written
	// by newer versions round-trip without data loss.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the JSON keys owned by the Job struct itself.
var knownFields = map[string]struct{}{
	"id": {}, "name": {}, "schedule": {}, "target": {}, "prompt": {},
	"oneshot": {}, "enabled": {}, "createdAt": {}, "lastFiredAt": {},
	"metadata": {},
}

// jobAlias avoids recursing into the custom (un)marshalers.
type jobAlias Job

// UnmarshalJSON decodes a job record, stashing unrecognized fields in Extra.
func (j *Job) UnmarshalJSON(data []byte) error {
	var alias jobAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if _, ok := knownFields[key]; ok {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	*j = Job(alias)
	j.Extra = raw
	return nil
}

// MarshalJSON encodes the job record with any preserved Extra fields merged
// back in. Known fields always win over stale Extra entries.
func (j Job) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(jobAlias(j))
	if err != nil {
		return nil, err
	}
	if len(j.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(j.Extra)+len(knownFields))
	for key, val := range j.Extra {
		merged[key] = val
	}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// clone returns a deep-enough copy so that callers cannot mutate the
// repository's cached record through shared maps.
func (j Job) clone() Job {
	out := j
	if j.Metadata != nil {
		out.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			out.Metadata[k] = v
		}
	}
	if j.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(j.Extra))
		for k, v := range j.Extra {
			out.Extra[k] = v
		}
	}
	if j.LastFiredAt != nil {
		t := *j.LastFiredAt
		out.LastFiredAt = &t
	}
	return out
}

// Slugify derives a stable identifier from a human job name: lowercase,
// runs of non-alphanumerics collapsed to a single dash, trimmed, capped.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > slugMaxLen {
		slug = strings.TrimRight(slug[:slugMaxLen], "-")
	}
	if slug == "" {
		return "job"
	}
	return slug
}

// ValidID reports whether id uses the charset Slugify produces. Ids double
// as filenames under the jobs directory, so anything outside lowercase
// alphanumerics and dashes could escape it or collide with the file layout.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
