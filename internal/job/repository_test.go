package job

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := NewRepository(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	return r
}

func validInput() CreateInput {
	return CreateInput{
		Name:     "standup reminder",
		Schedule: "0 9 * * 1-5",
		Target:   "tui",
		Prompt:   "remind",
		Enabled:  true,
	}
}

func TestRepository_CreateGeneratesSlugID(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	j, err := r.Create(validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID != "standup-reminder" {
		t.Errorf("id = %q, want standup-reminder", j.ID)
	}
	if j.CreatedAt.IsZero() {
		t.Error("createdAt should be set")
	}

	list := r.List()
	if len(list) != 1 || list[0].ID != "standup-reminder" {
		t.Errorf("List() = %+v, want the created job", list)
	}
}

func TestRepository_CreateCollisionSuffixes(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	first, _ := r.Create(validInput())
	second, err := r.Create(validInput())
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("re-creating the same name must produce a different id")
	}
	if second.ID != "standup-reminder-2" {
		t.Errorf("id = %q, want standup-reminder-2", second.ID)
	}

	third, err := r.Create(validInput())
	if err != nil {
		t.Fatalf("third create: %v", err)
	}
	if third.ID != "standup-reminder-3" {
		t.Errorf("id = %q, want standup-reminder-3", third.ID)
	}
}

func TestRepository_CreateCollisionFallsBackToRandom(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	input := validInput()
	input.Name = "x"

	seen := make(map[string]bool)
	// slug + suffixes 2..slugCollisionLimit, then the random fallback.
	for i := 0; i < slugCollisionLimit+3; i++ {
		j, err := r.Create(input)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[j.ID] {
			t.Fatalf("duplicate generated id %q", j.ID)
		}
		seen[j.ID] = true
	}
}

func TestRepository_CreateExplicitDuplicateID(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	input := validInput()
	input.ID = "fixed"
	if _, err := r.Create(input); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := r.Create(input)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("error = %v, want ErrDuplicateID", err)
	}
	if len(r.List()) != 1 {
		t.Error("failed create must not leave state behind")
	}
}

func TestRepository_CreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing name", func(in *CreateInput) { in.Name = "" }},
		{"missing schedule", func(in *CreateInput) { in.Schedule = "" }},
		{"invalid cron", func(in *CreateInput) { in.Schedule = "every tuesday" }},
		{"missing prompt", func(in *CreateInput) { in.Prompt = "" }},
		{"traversal id", func(in *CreateInput) { in.ID = "../escape" }},
		{"separator id", func(in *CreateInput) { in.ID = "nested/job" }},
		{"uppercase id", func(in *CreateInput) { in.ID = "Fixed" }},
		{"spaced id", func(in *CreateInput) { in.ID = "two words" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRepo(t)
			input := validInput()
			tt.mutate(&input)

			_, err := r.Create(input)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error = %v, want ErrInvalid", err)
			}
			if len(r.List()) != 0 {
				t.Error("rejected create must not leave state behind")
			}
		})
	}
}

func TestRepository_CreateTraversalIDNeverLeavesJobsDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "jobs")
	r, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}

	input := validInput()
	input.ID = "../escape"
	if _, err := r.Create(input); !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}

	// Nothing may land outside the jobs directory.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("reading root: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "jobs" {
		t.Errorf("root contains %d entries, want only jobs/", len(entries))
	}

	// A restart agrees with memory: no job was committed anywhere.
	reopened, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.List(); len(got) != 0 {
		t.Errorf("restart loaded %d jobs, want 0", len(got))
	}

	input = validInput()
	input.ID = "fixed-id-2"
	if _, err := r.Create(input); err != nil {
		t.Errorf("valid explicit id rejected: %v", err)
	}
}

func TestRepository_RoundTripAcrossRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r1, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}

	firedAt := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	input := validInput()
	input.OneShot = true
	input.Metadata = map[string]string{"heartbeatFile": "HEARTBEAT.md"}
	created, err := r1.Create(input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r1.Update(created.ID, Update{LastFiredAt: &firedAt}); err != nil {
		t.Fatalf("update: %v", err)
	}

	r2, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	got, ok := r2.Get(created.ID)
	if !ok {
		t.Fatal("job should survive a restart")
	}
	if got.Name != created.Name || got.Schedule != created.Schedule ||
		got.Target != created.Target || got.Prompt != created.Prompt ||
		!got.OneShot || !got.Enabled {
		t.Errorf("reloaded job = %+v, want equivalent of %+v", got, created)
	}
	if got.Metadata["heartbeatFile"] != "HEARTBEAT.md" {
		t.Errorf("metadata = %v, want heartbeatFile preserved", got.Metadata)
	}
	if got.LastFiredAt == nil || !got.LastFiredAt.Equal(firedAt) {
		t.Errorf("lastFiredAt = %v, want %v", got.LastFiredAt, firedAt)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestRepository_LoadSkipsMalformedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "noid.json"), []byte(`{"name":"x"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r1, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	if _, err := r1.Create(validInput()); err != nil {
		t.Fatalf("create: %v", err)
	}

	r2, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("reopen with corrupt neighbors: %v", err)
	}
	if len(r2.List()) != 1 {
		t.Errorf("jobs loaded = %d, want 1 (corrupt files skipped)", len(r2.List()))
	}
}

func TestRepository_UpdateUnknownID(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	name := "renamed"
	_, err := r.Update("ghost", Update{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRepository_UpdateInvalidSchedule(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	created, _ := r.Create(validInput())

	bad := "nope"
	if _, err := r.Update(created.ID, Update{Schedule: &bad}); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}

	got, _ := r.Get(created.ID)
	if got.Schedule != created.Schedule {
		t.Error("rejected update must not change the stored job")
	}
}

func TestRepository_DisableRemovesFromEnabledView(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	created, _ := r.Create(validInput())

	if len(r.ListEnabled()) != 1 {
		t.Fatal("job should start enabled")
	}

	disabled := false
	if _, err := r.Update(created.ID, Update{Enabled: &disabled}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(r.ListEnabled()) != 0 {
		t.Error("disabled job must not appear in ListEnabled")
	}
	if len(r.List()) != 1 {
		t.Error("disabled job must still appear in List")
	}
}

func TestRepository_Delete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	created, _ := r.Create(validInput())

	existed, err := r.Delete(created.ID)
	if err != nil || !existed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", existed, err)
	}
	if _, ok := r.Get(created.ID); ok {
		t.Error("deleted job should be absent")
	}
	if _, err := os.Stat(filepath.Join(dir, created.ID+".json")); !os.IsNotExist(err) {
		t.Error("backing file should be removed")
	}

	existed, err = r.Delete(created.ID)
	if err != nil || existed {
		t.Errorf("second Delete = (%v, %v), want (false, nil)", existed, err)
	}
}

func TestRepository_DeleteKeepsJobWhenUnlinkFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRepository(dir, nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	created, err := r.Create(validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Force the unlink to fail: swap the backing file for a non-empty
	// directory, which os.Remove refuses to delete.
	path := filepath.Join(dir, created.ID+".json")
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(path, "x"), 0o755); err != nil {
		t.Fatalf("planting directory: %v", err)
	}

	existed, err := r.Delete(created.ID)
	if err == nil {
		t.Fatal("expected unlink failure")
	}
	if !existed {
		t.Error("existed = false, want true")
	}
	if _, ok := r.Get(created.ID); !ok {
		t.Error("job must stay in memory when its file cannot be removed")
	}

	// Once the obstruction clears, a retry finishes the delete.
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("clearing obstruction: %v", err)
	}
	existed, err = r.Delete(created.ID)
	if err != nil || !existed {
		t.Errorf("retry Delete = (%v, %v), want (true, nil)", existed, err)
	}
}

func TestRepository_Notifications(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	created, _ := r.Create(validInput())
	disabled := false
	_, _ = r.Update(created.ID, Update{Enabled: &disabled})
	_, _ = r.Delete(created.ID)

	want := []EventType{EventCreated, EventUpdated, EventDeleted}
	for _, wantType := range want {
		select {
		case ev := <-ch:
			if ev.Type != wantType {
				t.Errorf("event = %q, want %q", ev.Type, wantType)
			}
			if ev.Job.ID != created.ID {
				t.Errorf("event job = %q, want %q", ev.Job.ID, created.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q event", wantType)
		}
	}
}
