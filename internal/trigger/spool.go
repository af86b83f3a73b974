package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Spool is the pending-trigger directory. The evaluator is its sole writer,
// the watcher its sole deleter; that single-writer discipline is what makes
// lock-free crash recovery possible.
type Spool struct {
	dir string
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trigger: create spool %s: %w", dir, err)
	}
	return &Spool{dir: dir}, nil
}

// Dir returns the spool directory path, for the filesystem watcher.
func (s *Spool) Dir() string {
	return s.dir
}

// Filename derives a spool filename unique per firing: job id plus the fire
// instant at nanosecond precision, with a random suffix as a final tiebreak.
func Filename(t Trigger) string {
	return fmt.Sprintf("%s-%d-%s.json", t.JobID, t.FiredAt.UnixNano(), uuid.NewString()[:8])
}

// Write persists a trigger durably: marshal, write to a temp file, rename
// into place. The rename raises a single create notification for watchers.
func (s *Spool) Write(t Trigger) (string, error) {
	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("trigger: marshal %s: %w", t.JobID, err)
	}
	raw = append(raw, '\n')

	name := Filename(t)
	final := filepath.Join(s.dir, name)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return "", fmt.Errorf("trigger: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("trigger: commit %s: %w", final, err)
	}
	return name, nil
}

// Read loads and parses a pending trigger by filename.
func (s *Spool) Read(name string) (Trigger, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Trigger{}, fmt.Errorf("trigger: read %s: %w", name, err)
	}
	var t Trigger
	if err := json.Unmarshal(raw, &t); err != nil {
		return Trigger{}, fmt.Errorf("trigger: parse %s: %w", name, err)
	}
	return t, nil
}

// List returns the filenames of all pending triggers in lexicographic order,
// so replays after a crash are deterministic.
func (s *Spool) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("trigger: scan spool %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes a processed trigger file. A file that is already gone is
// success, not an error.
func (s *Spool) Remove(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("trigger: remove %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a pending trigger file is still present.
func (s *Spool) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// Age is a convenience for observability: how long a trigger has been
// pending relative to now.
func Age(t Trigger, now time.Time) time.Duration {
	return now.Sub(t.FiredAt)
}
