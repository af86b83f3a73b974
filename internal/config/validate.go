package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/flemzord/cronspool/internal/cronspec"
	"github.com/flemzord/cronspool/internal/heartbeat"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, the data directory, duration and cron
// expressions, and that target references resolve.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.DataDir == "" {
		errs = append(errs, errors.New("config: data_dir is required"))
	}

	if cfg.TickInterval != "" {
		if d, err := time.ParseDuration(cfg.TickInterval); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid tick_interval %q: %w", cfg.TickInterval, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("config: tick_interval must be positive, got %q", cfg.TickInterval))
		}
	}

	for name, rawURL := range cfg.Targets {
		u, err := url.Parse(rawURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: target %q: invalid url %q: %w", name, rawURL, err))
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("config: target %q: unsupported scheme %q (want http or https)", name, u.Scheme))
		}
	}

	if cfg.DefaultTarget != "" {
		if _, ok := cfg.Targets[cfg.DefaultTarget]; !ok {
			errs = append(errs, fmt.Errorf("config: default_target %q has no entry in targets", cfg.DefaultTarget))
		}
	}

	errs = append(errs, validateHeartbeat(cfg.Heartbeat)...)

	return errors.Join(errs...)
}

func validateHeartbeat(hb HeartbeatConfig) []error {
	var errs []error

	if hb.Schedule != "" {
		if err := cronspec.Validate(hb.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: heartbeat.schedule: %w", err))
		}
	}

	if hb.QuietHours != "" {
		if _, err := heartbeat.ParseQuietHours(hb.QuietHours); err != nil {
			errs = append(errs, fmt.Errorf("config: heartbeat.quiet_hours: %w", err))
		}
	}

	if hb.Timezone != "" {
		if _, err := time.LoadLocation(hb.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: heartbeat.timezone %q: %w", hb.Timezone, err))
		}
	}

	return errs
}
