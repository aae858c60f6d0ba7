// Package config loads Pind client configuration from defaults, an
// optional YAML file, and PIND_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "PIND_CONFIG"

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"pind.yaml",
	"pind.yml",
}

// Config holds everything the client needs to talk to the backend and
// keep its local state.
type Config struct {
	// BackendURL is the base URL of the Pind backend.
	BackendURL string `koanf:"backend_url"`

	// RequestTimeout bounds every backend call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// StateDir holds the local sqlite database.
	StateDir string `koanf:"state_dir"`

	// DevMode enables development aids, currently the sample history
	// fallback when the history fetch fails.
	DevMode bool `koanf:"dev_mode"`

	Log LogConfig `koanf:"log"`

	Serve ServeConfig `koanf:"serve"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServeConfig configures the local bridge server.
type ServeConfig struct {
	Addr string `koanf:"addr"`
}

func defaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		BackendURL:     "http://localhost:9001",
		RequestTimeout: 30 * time.Second,
		StateDir:       filepath.Join(home, ".pind"),
		DevMode:        false,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
	}
}

// Load builds the effective configuration. A missing config file is not
// an error; a present but unparseable one is.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// PIND_BACKEND_URL -> backend_url, PIND_LOG_LEVEL -> log.level
	err := k.Load(env.Provider("PIND_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "PIND_"))
		if after, ok := strings.CutPrefix(s, "log_"); ok {
			return "log." + after
		}
		if after, ok := strings.CutPrefix(s, "serve_"); ok {
			return "serve." + after
		}
		return s
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
