// Package evaluator runs the scheduling tick: it matches enabled jobs
// against the current minute and commits a trigger file for each job judged
// due. Its contract ends at durable persistence of the trigger; delivery
// belongs to the watcher.
package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/cronspool/internal/cronspec"
	"github.com/flemzord/cronspool/internal/job"
	"github.com/flemzord/cronspool/internal/metrics"
	"github.com/flemzord/cronspool/internal/trigger"
)

// ErrAlreadyStarted is returned when Start is called on a running evaluator.
var ErrAlreadyStarted = errors.New("evaluator: already started")

const defaultInterval = 30 * time.Second

// JobSource is the subset of the job repository the evaluator needs.
type JobSource interface {
	ListEnabled() []job.Job
	Update(id string, u job.Update) (job.Job, error)
}

// Gate can veto a due firing, e.g. to hold the heartbeat job during quiet
// hours. A nil gate allows everything.
type Gate interface {
	Allow(j job.Job, now time.Time) bool
}

// Config holds evaluator settings.
type Config struct {
	// Interval is the tick period. It may be shorter than a minute; each
	// calendar minute is still evaluated exactly once. Defaults to 30s.
	Interval time.Duration
	Logger   *slog.Logger
	Gate     Gate
	Metrics  *metrics.Metrics
	// Now is injectable for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Evaluator periodically evaluates enabled jobs and spools triggers.
type Evaluator struct {
	cfg    Config
	jobs   JobSource
	spool  *trigger.Spool
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}

	// lastMinute is the most recent calendar minute already evaluated.
	// It guards against double-firing when ticks jitter across a minute
	// boundary or arrive more than once within the same minute.
	lastMinute time.Time
}

// New creates an Evaluator over the given job source and spool.
func New(jobs JobSource, spool *trigger.Spool, cfg Config) *Evaluator {
	cfg = cfg.withDefaults()
	return &Evaluator{
		cfg:    cfg,
		jobs:   jobs,
		spool:  spool,
		logger: cfg.Logger,
	}
}

// Start begins the tick loop. Returns ErrAlreadyStarted if called twice.
func (e *Evaluator) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.stopped = make(chan struct{})
	go e.run(ctx)

	e.logger.Info("evaluator: started", "interval", e.cfg.Interval)
	return nil
}

// Stop halts the tick loop and waits for the current tick to finish.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	cancel, stopped := e.cancel, e.stopped
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	e.logger.Info("evaluator: stopped")
}

func (e *Evaluator) run(ctx context.Context) {
	defer close(e.stopped)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(e.cfg.Now())
		}
	}
}

// tick evaluates one instant. Each calendar minute is evaluated at most
// once; a single job's bad cron expression is skipped, never fatal.
func (e *Evaluator) tick(now time.Time) {
	minute := now.Truncate(time.Minute)
	if !minute.After(e.lastMinute) {
		return
	}
	e.lastMinute = minute

	for _, j := range e.jobs.ListEnabled() {
		sched, err := cronspec.Parse(j.Schedule)
		if err != nil {
			e.logger.Warn("evaluator: skipping job with invalid schedule",
				"job", j.ID, "schedule", j.Schedule, "error", err)
			continue
		}
		if !cronspec.DueAt(sched, minute) {
			continue
		}
		if e.cfg.Gate != nil && !e.cfg.Gate.Allow(j, minute) {
			e.logger.Debug("evaluator: firing gated off", "job", j.ID, "at", minute)
			continue
		}
		e.fire(j, minute)
	}
}

// fire copies the job into a trigger and commits it to the spool, then
// optimistically stamps lastFiredAt. A spool write failure leaves the job
// untouched so the next due minute retries.
func (e *Evaluator) fire(j job.Job, at time.Time) {
	name, err := e.spool.Write(trigger.Trigger{
		JobID:   j.ID,
		JobName: j.Name,
		Target:  j.Target,
		Prompt:  j.Prompt,
		OneShot: j.OneShot,
		FiredAt: at,
	})
	if err != nil {
		e.logger.Error("evaluator: trigger commit failed", "job", j.ID, "error", err)
		return
	}

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.TriggersFired.Inc()
	}
	e.logger.Info("evaluator: job fired", "job", j.ID, "trigger", name, "at", at)

	firedAt := at
	if _, err := e.jobs.Update(j.ID, job.Update{LastFiredAt: &firedAt}); err != nil {
		e.logger.Warn("evaluator: lastFiredAt update failed", "job", j.ID, "error", err)
	}
}
