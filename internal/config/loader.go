package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRef matches ${NAME} and ${NAME:-default} references in the raw YAML.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the cronspool configuration at path: environment references
// are substituted first, then the result is parsed into a Config. The
// caller validates separately, so a config can be loaded for inspection
// even when it would not run.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded, err := substituteEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// substituteEnv resolves environment references in the raw YAML. A set
// variable wins over a default; a reference with neither fails the load
// rather than leaving a literal ${...} in a target URL or token.
func substituteEnv(raw []byte) ([]byte, error) {
	var unset []string

	out := envRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		groups := envRef.FindSubmatch(ref)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if groups[2] != nil {
			return groups[2]
		}

		unset = append(unset, name)
		return ref
	})

	if len(unset) > 0 {
		return nil, fmt.Errorf("unset variables without defaults: %s", strings.Join(unset, ", "))
	}
	return out, nil
}

// DefaultPath returns the first config file found in the standard
// locations: $XDG_CONFIG_HOME/cronspool/cronspool.yaml (falling back to
// ~/.config), then cronspool.yaml in the working directory.
func DefaultPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "cronspool", "cronspool.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "cronspool", "cronspool.yaml"))
	}
	candidates = append(candidates, "cronspool.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config: no configuration file found (searched: %v)", candidates)
}
