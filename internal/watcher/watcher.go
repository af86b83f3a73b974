// Package watcher is the delivery engine: it drains the trigger spool on
// startup, then observes it for new trigger files, delivering each prompt to
// its session and deleting the file only after the session confirms
// completion. A trigger that is never deleted — crash, delivery failure — is
// naturally retried on the next start; that is the at-least-once contract.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flemzord/cronspool/internal/heartbeat"
	"github.com/flemzord/cronspool/internal/history"
	"github.com/flemzord/cronspool/internal/metrics"
	"github.com/flemzord/cronspool/internal/session"
	"github.com/flemzord/cronspool/internal/trigger"
	"github.com/flemzord/cronspool/pkg/message"
)

// Sentinel errors for watcher operations.
var (
	ErrAlreadyStarted = errors.New("watcher: already started")

	// ErrNoTarget marks a trigger with no resolvable destination. The file
	// is kept and retried on every future start; there is no dead-letter
	// area, only the delivery history trail.
	ErrNoTarget = errors.New("watcher: no target and no default target configured")
)

// JobStore is the subset of the job repository the watcher needs: deleting
// a one-shot job after its single confirmed delivery.
type JobStore interface {
	Delete(id string) (bool, error)
}

// Config holds watcher settings.
type Config struct {
	// DefaultTarget receives triggers that carry no target of their own.
	DefaultTarget string
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	// Recorder receives one history entry per delivery attempt.
	// Nil disables recording.
	Recorder history.Recorder
	// OnError is invoked with the offending spool filename for every
	// processing failure. Observability only, never correctness.
	OnError func(name string, err error)
	// OnDelivered is invoked after each fully processed trigger.
	OnDelivered func(name string, t trigger.Trigger)
	// Now is injectable for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Recorder == nil {
		c.Recorder = history.Nop{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Watcher drives triggers from pending to delivered.
type Watcher struct {
	cfg    Config
	spool  *trigger.Spool
	jobs   JobStore
	client session.Client
	logger *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stop    chan struct{}
	stopped chan struct{}

	// inflight suppresses duplicate concurrent processing of one file when
	// the filesystem raises several notifications for a single change.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New creates a Watcher over the given spool, job store, and session client.
func New(spool *trigger.Spool, jobs JobStore, client session.Client, cfg Config) *Watcher {
	cfg = cfg.withDefaults()
	return &Watcher{
		cfg:      cfg,
		spool:    spool,
		jobs:     jobs,
		client:   client,
		logger:   cfg.Logger,
		inflight: make(map[string]struct{}),
	}
}

// Start first drains every pending trigger file in lexicographic order,
// processing each to completion, then begins observing the spool for new
// files. The filesystem watch is registered before the drain so a trigger
// committed mid-drain is picked up either by the drain itself or by its
// queued notification afterwards.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create filesystem watcher: %w", err)
	}
	if err := fsw.Add(w.spool.Dir()); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", w.spool.Dir(), err)
	}

	w.drain(ctx)

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	go w.loop(ctx, fsw, w.stop, w.stopped)

	w.logger.Info("watcher: started", "spool", w.spool.Dir())
	return nil
}

// Stop ends the filesystem watch. It never interrupts an in-flight
// delivery; one last delivery may still be completing when Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw, stop, stopped := w.fsw, w.stop, w.stopped
	w.fsw = nil
	w.mu.Unlock()

	if fsw == nil {
		return
	}
	close(stop)
	_ = fsw.Close()
	<-stopped
	w.logger.Info("watcher: stopped")
}

// drain recovers triggers orphaned by a prior crash or unclean shutdown,
// sequentially and in stable order so replays are deterministic.
func (w *Watcher) drain(ctx context.Context) {
	names, err := w.spool.List()
	if err != nil {
		w.reportError("", err)
		return
	}
	if len(names) > 0 {
		w.logger.Info("watcher: draining pending triggers", "count", len(names))
	}
	for _, name := range names {
		w.processGuarded(ctx, name)
	}
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, stop, stopped chan struct{}) {
	defer close(stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			go w.processGuarded(ctx, name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.reportError("", fmt.Errorf("watcher: filesystem watch: %w", err))
		}
	}
}

// processGuarded claims the per-file in-flight marker before processing and
// always releases it, so duplicate notifications for one file collapse to a
// single attempt in flight.
func (w *Watcher) processGuarded(ctx context.Context, name string) {
	w.inflightMu.Lock()
	if _, busy := w.inflight[name]; busy {
		w.inflightMu.Unlock()
		return
	}
	w.inflight[name] = struct{}{}
	w.inflightMu.Unlock()

	defer func() {
		w.inflightMu.Lock()
		delete(w.inflight, name)
		w.inflightMu.Unlock()
	}()

	// A late duplicate notification for an already-delivered file lands
	// here after the delete; nothing to do.
	if !w.spool.Exists(name) {
		return
	}

	w.process(ctx, name)
}

// process drives one trigger file to a terminal state. Any failure leaves
// the file in place for the next drain.
func (w *Watcher) process(ctx context.Context, name string) {
	tr, err := w.spool.Read(name)
	if err != nil {
		w.reportError(name, err)
		return
	}

	target := tr.Target
	if target == "" {
		target = w.cfg.DefaultTarget
	}
	if target == "" {
		w.recordAttempt(tr, target, ErrNoTarget)
		w.reportError(name, fmt.Errorf("%w (job %q)", ErrNoTarget, tr.JobID))
		return
	}

	if err := w.deliver(ctx, tr, target); err != nil {
		w.recordAttempt(tr, target, err)
		w.reportError(name, fmt.Errorf("watcher: deliver %s: %w", name, err))
		return
	}

	// Delivery is confirmed; only now is the trigger allowed to disappear.
	if err := w.spool.Remove(name); err != nil {
		w.reportError(name, err)
		return
	}

	if tr.OneShot {
		if _, err := w.jobs.Delete(tr.JobID); err != nil {
			w.reportError(name, fmt.Errorf("watcher: delete one-shot job %q: %w", tr.JobID, err))
		}
	}

	w.recordAttempt(tr, target, nil)
	w.logger.Info("watcher: trigger delivered",
		"trigger", name, "job", tr.JobID, "target", target, "oneshot", tr.OneShot)

	if w.cfg.OnDelivered != nil {
		w.cfg.OnDelivered(name, tr)
	}
}

// deliver sends the prompt as an event-origin message and waits for the
// session to confirm completion.
func (w *Watcher) deliver(ctx context.Context, tr trigger.Trigger, target string) error {
	msg := message.NewCronEvent(tr.JobID, tr.JobName, tr.Prompt, tr.FiredAt)
	if tr.JobID == heartbeat.JobID {
		msg.Origin = message.OriginHeartbeat
	}

	handle, err := w.client.Session(target).Send(ctx, msg)
	if err != nil {
		return err
	}
	return handle.Result(ctx)
}

// recordAttempt writes the history entry and delivery metric for one
// attempt; err == nil means confirmed.
func (w *Watcher) recordAttempt(tr trigger.Trigger, target string, err error) {
	a := history.Attempt{
		JobID:       tr.JobID,
		JobName:     tr.JobName,
		Target:      target,
		FiredAt:     tr.FiredAt,
		AttemptedAt: w.cfg.Now().UTC(),
		Status:      history.StatusOK,
	}
	if err != nil {
		a.Status = history.StatusFailed
		a.Error = err.Error()
	}
	w.cfg.Recorder.Record(a)

	if w.cfg.Metrics != nil {
		status := metrics.StatusOK
		if err != nil {
			status = metrics.StatusFailed
		}
		w.cfg.Metrics.Deliveries.WithLabelValues(status).Inc()
	}
}

func (w *Watcher) reportError(name string, err error) {
	w.logger.Error("watcher: processing failed", "trigger", name, "error", err)
	if w.cfg.OnError != nil {
		w.cfg.OnError(name, err)
	}
}
