// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for cronspool.
package config

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is the root under which jobs/ and triggers/ live.
	DataDir string `yaml:"data_dir"`

	// DefaultTarget receives triggers whose job names no target of its own.
	DefaultTarget string `yaml:"default_target,omitempty"`

	// TickInterval is the evaluator cadence (Go duration string, e.g. "30s").
	// Empty uses the built-in default.
	TickInterval string `yaml:"tick_interval,omitempty"`

	// Targets maps target identifiers to session webhook URLs.
	Targets map[string]string `yaml:"targets,omitempty"`

	// Heartbeat configures the standing heartbeat job.
	Heartbeat HeartbeatConfig `yaml:"heartbeat,omitempty"`

	// Gateway configures the HTTP admin server.
	Gateway GatewayConfig `yaml:"gateway,omitempty"`

	// History configures the delivery audit log.
	History HistoryConfig `yaml:"history,omitempty"`
}

// HeartbeatConfig controls the standing heartbeat job.
type HeartbeatConfig struct {
	// Enabled makes the daemon ensure the heartbeat job on startup.
	Enabled bool `yaml:"enabled"`

	// Schedule overrides the default cadence (5-field cron).
	Schedule string `yaml:"schedule,omitempty"`

	// Prompt overrides the default heartbeat instruction.
	Prompt string `yaml:"prompt,omitempty"`

	// File is the path the heartbeat prompt points the agent at.
	File string `yaml:"file,omitempty"`

	// QuietHours is a "HH:MM-HH:MM" window during which the heartbeat is
	// held (midnight wrap supported). Empty disables quiet hours.
	QuietHours string `yaml:"quiet_hours,omitempty"`

	// Timezone is an IANA zone name interpreting quiet hours. Empty = UTC.
	Timezone string `yaml:"timezone,omitempty"`
}

// GatewayConfig controls the HTTP admin server.
type GatewayConfig struct {
	// Listen is the bind address, e.g. "127.0.0.1:8787". Empty disables
	// the gateway.
	Listen string `yaml:"listen,omitempty"`

	// Token, when set, protects the /api routes with bearer auth.
	Token string `yaml:"token,omitempty"`
}

// HistoryConfig controls the SQLite delivery audit log.
type HistoryConfig struct {
	// Path is the database file. Empty disables history recording.
	Path string `yaml:"path,omitempty"`
}
