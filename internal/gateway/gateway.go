// Package gateway provides the HTTP admin server: health, status, job
// administration, delivery history, and Prometheus metrics. It binds to
// loopback by default.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/cronspool/internal/history"
	"github.com/flemzord/cronspool/internal/job"
	"github.com/flemzord/cronspool/internal/trigger"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Listen          string
	Token           string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8787"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// JobStore is the job administration surface the gateway needs.
type JobStore interface {
	List() []job.Job
	Get(id string) (job.Job, bool)
	Create(input job.CreateInput) (job.Job, error)
	Update(id string, u job.Update) (job.Job, error)
	Delete(id string) (bool, error)
}

// SpoolReader exposes the pending trigger queue for status reporting.
type SpoolReader interface {
	List() ([]string, error)
	Read(name string) (trigger.Trigger, error)
}

// HistorySource exposes recent delivery attempts.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Attempt, error)
}

// Options wires the gateway to the rest of the daemon. History and Gatherer
// are optional; their endpoints return 404 when unset.
type Options struct {
	Jobs     JobStore
	Spool    SpoolReader
	History  HistorySource
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Server is the HTTP admin server.
type Server struct {
	config    Config
	logger    *slog.Logger
	jobs      JobStore
	spool     SpoolReader
	history   HistorySource
	gatherer  prometheus.Gatherer
	now       func() time.Time
	startedAt time.Time
	server    *http.Server
}

// New builds a Server. Jobs and Spool are required.
func New(cfg Config, opts Options) (*Server, error) {
	cfg.defaults()
	if opts.Jobs == nil {
		return nil, errors.New("gateway: job store is required")
	}
	if opts.Spool == nil {
		return nil, errors.New("gateway: spool is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if _, err := net.ResolveTCPAddr("tcp", cfg.Listen); err != nil {
		return nil, errors.New("gateway: invalid listen address: " + cfg.Listen)
	}

	return &Server{
		config:   cfg,
		logger:   logger,
		jobs:     opts.Jobs,
		spool:    opts.Spool,
		history:  opts.History,
		gatherer: opts.Gatherer,
		now:      now,
	}, nil
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = s.now()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("gateway: listening", "addr", s.config.Listen)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway: shutting down")
	return s.server.Shutdown(shutdownCtx)
}
