package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/cronspool/internal/cronspec"
)

// Sentinel errors for repository operations.
var (
	ErrDuplicateID = errors.New("job: id already exists")
	ErrNotFound    = errors.New("job: not found")
	ErrInvalid     = errors.New("job: invalid definition")
)

// slugCollisionLimit bounds the "-2", "-3", … suffix search before the
// repository falls back to a random identifier.
const slugCollisionLimit = 20

// EventType describes a repository change notification.
type EventType string

// Repository change kinds.
const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is a fire-and-forget change notification for observers such as a UI
// rendering the active job list. Delivery is best-effort: slow subscribers
// lose events rather than block the repository.
type Event struct {
	Type EventType
	Job  Job
}

// CreateInput holds the fields accepted when creating a job. ID is optional;
// when empty an identifier is derived from Name.
type CreateInput struct {
	ID       string
	Name     string
	Schedule string
	Target   string
	Prompt   string
	OneShot  bool
	Enabled  bool
	Metadata map[string]string
}

// Update holds the mutable fields of a job. Nil pointers leave the current
// value untouched; a non-nil Metadata replaces the whole bag.
type Update struct {
	Name        *string
	Schedule    *string
	Target      *string
	Prompt      *string
	OneShot     *bool
	Enabled     *bool
	LastFiredAt *time.Time
	Metadata    map[string]string
}

// Repository is the durable, file-backed store of job definitions. It is the
// sole writer of job files; the trigger watcher deletes one-shot jobs through
// it after delivery.
type Repository struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]Job

	subsMu sync.Mutex
	subs   []chan Event
}

// NewRepository creates the jobs directory if needed and loads every
// well-formed job file into memory. A malformed file is skipped with a
// warning; corruption in one job never blocks the rest.
func NewRepository(dir string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("job: create directory %s: %w", dir, err)
	}

	r := &Repository{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]Job),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("job: scan %s: %w", r.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("job: skipping unreadable file", "path", path, "error", err)
			continue
		}

		var j Job
		if err := json.Unmarshal(raw, &j); err != nil {
			r.logger.Warn("job: skipping malformed file", "path", path, "error", err)
			continue
		}
		if j.ID == "" {
			r.logger.Warn("job: skipping record without id", "path", path)
			continue
		}
		r.jobs[j.ID] = j
	}

	r.logger.Info("job: repository loaded", "dir", r.dir, "jobs", len(r.jobs))
	return nil
}

// List returns all jobs. Order is not significant.
func (r *Repository) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.clone())
	}
	return out
}

// ListEnabled returns only the jobs eligible for evaluation.
func (r *Repository) ListEnabled() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Job
	for _, j := range r.jobs {
		if j.Enabled {
			out = append(out, j.clone())
		}
	}
	return out
}

// Get returns the job with the given id.
func (r *Repository) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// Create validates the input, assigns an identifier if none was supplied,
// persists the record, and commits it to memory. On persistence failure no
// in-memory state is retained.
func (r *Repository) Create(input CreateInput) (Job, error) {
	if input.Name == "" {
		return Job{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if input.Schedule == "" {
		return Job{}, fmt.Errorf("%w: schedule is required", ErrInvalid)
	}
	if err := cronspec.Validate(input.Schedule); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if input.Prompt == "" {
		return Job{}, fmt.Errorf("%w: prompt is required", ErrInvalid)
	}
	if input.ID != "" && !ValidID(input.ID) {
		return Job{}, fmt.Errorf("%w: id %q may only contain lowercase letters, digits, and dashes", ErrInvalid, input.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := input.ID
	if id == "" {
		id = r.nextIDLocked(input.Name)
	} else if _, exists := r.jobs[id]; exists {
		return Job{}, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	j := Job{
		ID:        id,
		Name:      input.Name,
		Schedule:  input.Schedule,
		Target:    input.Target,
		Prompt:    input.Prompt,
		OneShot:   input.OneShot,
		Enabled:   input.Enabled,
		CreatedAt: r.now().UTC(),
		Metadata:  input.Metadata,
	}

	if err := r.persist(j); err != nil {
		return Job{}, err
	}
	r.jobs[id] = j

	r.notify(Event{Type: EventCreated, Job: j.clone()})
	return j.clone(), nil
}

// nextIDLocked derives an unused identifier from name. Callers hold r.mu.
func (r *Repository) nextIDLocked(name string) string {
	slug := Slugify(name)
	if _, taken := r.jobs[slug]; !taken {
		return slug
	}
	for n := 2; n <= slugCollisionLimit; n++ {
		candidate := fmt.Sprintf("%s-%d", slug, n)
		if _, taken := r.jobs[candidate]; !taken {
			return candidate
		}
	}
	return uuid.NewString()
}

// Apply merges the update into a copy of j.
func (u Update) apply(j Job) Job {
	if u.Name != nil {
		j.Name = *u.Name
	}
	if u.Schedule != nil {
		j.Schedule = *u.Schedule
	}
	if u.Target != nil {
		j.Target = *u.Target
	}
	if u.Prompt != nil {
		j.Prompt = *u.Prompt
	}
	if u.OneShot != nil {
		j.OneShot = *u.OneShot
	}
	if u.Enabled != nil {
		j.Enabled = *u.Enabled
	}
	if u.LastFiredAt != nil {
		t := *u.LastFiredAt
		j.LastFiredAt = &t
	}
	if u.Metadata != nil {
		j.Metadata = u.Metadata
	}
	return j
}

// Update merges the allowed mutable fields into the stored job and persists
// the full merged record. Returns ErrNotFound without side effects when the
// id is unknown; on persistence failure the previous record stays committed.
func (r *Repository) Update(id string, u Update) (Job, error) {
	if u.Schedule != nil {
		if err := cronspec.Validate(*u.Schedule); err != nil {
			return Job{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	merged := u.apply(current.clone())
	if err := r.persist(merged); err != nil {
		return Job{}, err
	}
	r.jobs[id] = merged

	r.notify(Event{Type: EventUpdated, Job: merged.clone()})
	return merged.clone(), nil
}

// Delete removes the job's backing file, then drops it from memory. The
// bool reports whether a job actually existed. When the unlink fails the
// in-memory record is kept, so file and memory never disagree.
func (r *Repository) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return false, nil
	}

	if err := os.Remove(r.path(id)); err != nil && !os.IsNotExist(err) {
		return true, fmt.Errorf("job: delete %s: %w", r.path(id), err)
	}
	delete(r.jobs, id)

	r.notify(Event{Type: EventDeleted, Job: j.clone()})
	return true, nil
}

// Subscribe registers an observer for change notifications. The channel is
// buffered; events are dropped rather than delivered late.
func (r *Repository) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (r *Repository) Unsubscribe(ch <-chan Event) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for i, sub := range r.subs {
		if sub == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (r *Repository) notify(ev Event) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for _, sub := range r.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (r *Repository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// persist writes the job file atomically: marshal, write to a temp file in
// the same directory, rename over the final path.
func (r *Repository) persist(j Job) error {
	raw, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("job: marshal %s: %w", j.ID, err)
	}
	raw = append(raw, '\n')

	final := r.path(j.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("job: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("job: commit %s: %w", final, err)
	}
	return nil
}
