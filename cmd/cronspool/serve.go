package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/flemzord/cronspool/internal/config"
	"github.com/flemzord/cronspool/internal/gateway"
	"github.com/flemzord/cronspool/internal/heartbeat"
	"github.com/flemzord/cronspool/internal/history"
	"github.com/flemzord/cronspool/internal/metrics"
	"github.com/flemzord/cronspool/internal/service"
	"github.com/flemzord/cronspool/internal/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger()

			var recorder history.Recorder = history.Nop{}
			var store *history.Store
			if cfg.History.Path != "" {
				store, err = history.Open(cfg.History.Path, logger)
				if err != nil {
					return err
				}
				defer store.Close()
				recorder = store
			}

			reg := prometheus.NewRegistry()
			var svc *service.Service
			m := metrics.MustNew(reg, func() float64 {
				if svc == nil {
					return 0
				}
				names, err := svc.Spool().List()
				if err != nil {
					return 0
				}
				return float64(len(names))
			})

			svcCfg, err := serviceConfig(cfg, logger)
			if err != nil {
				return err
			}
			svcCfg.Metrics = m
			svcCfg.Recorder = recorder

			client := session.NewHTTPClient(cfg.Targets, nil)
			svc, err = service.New(svcCfg, client)
			if err != nil {
				return err
			}

			if cfg.Heartbeat.Enabled {
				if _, _, err := svc.EnsureHeartbeat(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			if cfg.Gateway.Listen != "" {
				opts := gateway.Options{
					Jobs:     svc.Repository(),
					Spool:    svc.Spool(),
					Gatherer: reg,
					Logger:   logger,
				}
				if store != nil {
					opts.History = store
				}
				gw, err := gateway.New(gateway.Config{
					Listen: cfg.Gateway.Listen,
					Token:  cfg.Gateway.Token,
				}, opts)
				if err != nil {
					return err
				}
				if err := gw.Start(ctx); err != nil {
					return err
				}
				defer func() {
					_ = gw.Stop(context.Background())
				}()
			}

			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}

// serviceConfig translates the YAML configuration into service settings.
func serviceConfig(cfg *config.Config, logger *slog.Logger) (service.Config, error) {
	out := service.Config{
		DataDir:           cfg.DataDir,
		DefaultTarget:     cfg.DefaultTarget,
		HeartbeatSchedule: cfg.Heartbeat.Schedule,
		HeartbeatPrompt:   cfg.Heartbeat.Prompt,
		HeartbeatFile:     cfg.Heartbeat.File,
		Logger:            logger,
	}

	if cfg.TickInterval != "" {
		d, err := time.ParseDuration(cfg.TickInterval)
		if err != nil {
			return service.Config{}, fmt.Errorf("invalid tick_interval: %w", err)
		}
		out.TickInterval = d
	}

	if cfg.Heartbeat.QuietHours != "" {
		q, err := heartbeat.ParseQuietHours(cfg.Heartbeat.QuietHours)
		if err != nil {
			return service.Config{}, err
		}
		out.QuietHours = &q
	}
	if cfg.Heartbeat.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Heartbeat.Timezone)
		if err != nil {
			return service.Config{}, err
		}
		out.Timezone = loc
	}

	return out, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadConfig resolves, loads, and validates the configuration file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		resolved, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
