package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func attempt(jobID, status string, at time.Time) Attempt {
	return Attempt{
		JobID:       jobID,
		JobName:     jobID,
		Target:      "tui",
		FiredAt:     at,
		AttemptedAt: at.Add(2 * time.Second),
		Status:      status,
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	s.Record(attempt("a", StatusOK, base))
	failed := attempt("b", StatusFailed, base.Add(time.Minute))
	failed.Error = "target unreachable"
	s.Record(failed)

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].JobID != "b" {
		t.Errorf("first = %q, want newest first", got[0].JobID)
	}
	if got[0].Status != StatusFailed || got[0].Error != "target unreachable" {
		t.Errorf("failed attempt = %+v, want status/error preserved", got[0])
	}
	if !got[1].FiredAt.Equal(base) {
		t.Errorf("firedAt = %v, want %v", got[1].FiredAt, base)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Record(attempt("job", StatusOK, base.Add(time.Duration(i)*time.Minute)))
	}

	got, err := s.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestStore_Prune(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s.Record(attempt("old", StatusOK, old))
	s.Record(attempt("new", StatusOK, recent))

	n, err := s.Prune(context.Background(), recent)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	got, _ := s.Recent(context.Background(), 10)
	if len(got) != 1 || got[0].JobID != "new" {
		t.Errorf("remaining = %+v, want only the recent attempt", got)
	}
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.Record(attempt("persisted", StatusOK, time.Now().UTC()))
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()

	got, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "persisted" {
		t.Errorf("rows after reopen = %+v, want the recorded attempt", got)
	}
}
