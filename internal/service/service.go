// Package service wires the job repository, schedule evaluator, and trigger
// watcher into one lifecycle, and exposes the command surface higher layers
// (CLI, admin gateway) build on.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/flemzord/cronspool/internal/evaluator"
	"github.com/flemzord/cronspool/internal/heartbeat"
	"github.com/flemzord/cronspool/internal/history"
	"github.com/flemzord/cronspool/internal/job"
	"github.com/flemzord/cronspool/internal/metrics"
	"github.com/flemzord/cronspool/internal/session"
	"github.com/flemzord/cronspool/internal/trigger"
	"github.com/flemzord/cronspool/internal/watcher"
)

// Subdirectories under the data root.
const (
	jobsDirName  = "jobs"
	spoolDirName = "triggers"
)

// Config holds service settings.
type Config struct {
	// DataDir is the root under which jobs/ and triggers/ live.
	DataDir string
	// DefaultTarget receives triggers whose job has no target.
	DefaultTarget string
	// TickInterval is the evaluator cadence. Zero uses the default.
	TickInterval time.Duration

	// HeartbeatSchedule, HeartbeatPrompt, and HeartbeatFile override the
	// standing heartbeat job defaults. Empty uses the defaults.
	HeartbeatSchedule string
	HeartbeatPrompt   string
	HeartbeatFile     string
	// QuietHours holds heartbeat firings inside the window. Nil disables.
	QuietHours *heartbeat.QuietHours
	// Timezone interprets quiet hours. Nil means UTC.
	Timezone *time.Location

	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Recorder history.Recorder

	// OnError and OnDelivered are forwarded to the watcher.
	OnError     func(name string, err error)
	OnDelivered func(name string, t trigger.Trigger)
}

// Service is the scheduler facade.
type Service struct {
	cfg    Config
	logger *slog.Logger

	repo  *job.Repository
	spool *trigger.Spool
	eval  *evaluator.Evaluator
	watch *watcher.Watcher
}

// New constructs the repository, spool, evaluator, and watcher under
// cfg.DataDir and wires them together.
func New(cfg Config, client session.Client) (*Service, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("service: data dir is required")
	}
	if client == nil {
		return nil, errors.New("service: nil session client")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	repo, err := job.NewRepository(filepath.Join(cfg.DataDir, jobsDirName), cfg.Logger)
	if err != nil {
		return nil, err
	}
	spool, err := trigger.NewSpool(filepath.Join(cfg.DataDir, spoolDirName))
	if err != nil {
		return nil, err
	}

	eval := evaluator.New(repo, spool, evaluator.Config{
		Interval: cfg.TickInterval,
		Logger:   cfg.Logger,
		Gate:     heartbeat.Gate{Quiet: cfg.QuietHours, Timezone: cfg.Timezone},
		Metrics:  cfg.Metrics,
	})

	watch := watcher.New(spool, repo, client, watcher.Config{
		DefaultTarget: cfg.DefaultTarget,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		Recorder:      cfg.Recorder,
		OnError:       cfg.OnError,
		OnDelivered:   cfg.OnDelivered,
	})

	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
		repo:   repo,
		spool:  spool,
		eval:   eval,
		watch:  watch,
	}, nil
}

// Start launches the evaluator, then the watcher (whose initial drain runs
// synchronously inside its Start).
func (s *Service) Start(ctx context.Context) error {
	if err := s.eval.Start(ctx); err != nil {
		return err
	}
	if err := s.watch.Start(ctx); err != nil {
		s.eval.Stop()
		return err
	}
	s.logger.Info("service: scheduler running", "data", s.cfg.DataDir)
	return nil
}

// Stop shuts the components down in reverse order. In-flight deliveries are
// never interrupted.
func (s *Service) Stop() {
	s.watch.Stop()
	s.eval.Stop()
	s.logger.Info("service: scheduler stopped")
}

// Repository exposes the job store for read-mostly consumers such as the
// admin gateway.
func (s *Service) Repository() *job.Repository {
	return s.repo
}

// Spool exposes the pending-trigger area for observability.
func (s *Service) Spool() *trigger.Spool {
	return s.spool
}

// Subscribe forwards repository change notifications, e.g. for a UI
// rendering the active job list.
func (s *Service) Subscribe() <-chan job.Event {
	return s.repo.Subscribe()
}

// EnsureHeartbeat creates the standing heartbeat job if it does not exist.
// Idempotent: the bool reports whether a job was created by this call.
func (s *Service) EnsureHeartbeat() (job.Job, bool, error) {
	if existing, ok := s.repo.Get(heartbeat.JobID); ok {
		return existing, false, nil
	}

	input := heartbeat.CreateInput(
		s.cfg.DefaultTarget,
		s.cfg.HeartbeatSchedule,
		s.cfg.HeartbeatPrompt,
		s.cfg.HeartbeatFile,
	)
	created, err := s.repo.Create(input)
	if err != nil {
		// A concurrent create is still success for idempotence purposes.
		if errors.Is(err, job.ErrDuplicateID) {
			existing, _ := s.repo.Get(heartbeat.JobID)
			return existing, false, nil
		}
		return job.Job{}, false, err
	}

	s.logger.Info("service: heartbeat job created", "schedule", created.Schedule)
	return created, true, nil
}

// AddJob creates a job and returns a one-line human summary.
func (s *Service) AddJob(input job.CreateInput) (string, error) {
	created, err := s.repo.Create(input)
	if err != nil {
		return "", commandError(err)
	}
	return fmt.Sprintf("created job %s: %s", created.ID, Summary(created)), nil
}

// RemoveJob deletes a job by id.
func (s *Service) RemoveJob(id string) (string, error) {
	existed, err := s.repo.Delete(id)
	if err != nil {
		return "", err
	}
	if !existed {
		return "", fmt.Errorf("job %q not found", id)
	}
	return fmt.Sprintf("removed job %s", id), nil
}

// EnableJob marks a job eligible for evaluation.
func (s *Service) EnableJob(id string) (string, error) {
	return s.setEnabled(id, true)
}

// DisableJob excludes a job from evaluation without deleting it.
func (s *Service) DisableJob(id string) (string, error) {
	return s.setEnabled(id, false)
}

func (s *Service) setEnabled(id string, enabled bool) (string, error) {
	_, err := s.repo.Update(id, job.Update{Enabled: &enabled})
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return "", fmt.Errorf("job %q not found", id)
		}
		return "", commandError(err)
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	return fmt.Sprintf("%s job %s", verb, id), nil
}

// ListJobs renders every job, sorted by id, one line each.
func (s *Service) ListJobs() string {
	jobs := s.repo.List()
	if len(jobs) == 0 {
		return "no jobs"
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })

	var b strings.Builder
	for _, j := range jobs {
		fmt.Fprintf(&b, "%s  %s\n", j.ID, Summary(j))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary renders one job as a human-readable line.
func Summary(j job.Job) string {
	state := "enabled"
	if !j.Enabled {
		state = "disabled"
	}
	target := j.Target
	if target == "" {
		target = "(default)"
	}
	line := fmt.Sprintf("%q %s → %s [%s]", j.Name, j.Schedule, target, state)
	if j.OneShot {
		line += " (one-shot)"
	}
	if j.LastFiredAt != nil {
		line += " last fired " + j.LastFiredAt.UTC().Format(time.RFC3339)
	}
	return line
}

// commandError rewrites repository sentinel errors into the explanatory
// text command surfaces present to users.
func commandError(err error) error {
	if errors.Is(err, job.ErrDuplicateID) {
		return errors.New("a job with that id already exists")
	}
	return err
}
