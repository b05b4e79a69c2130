package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Fetch-failure policies. "continue" reproduces the original tolerance for a
// failed pull (offline with a cached model); "abort" stops the sequence.
const (
	FetchContinue = "continue"
	FetchAbort    = "abort"
)

// Config holds runtime parameters for the startup sequencer.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	DaemonCommand   []string `json:"daemon_command" yaml:"daemon_command" toml:"daemon_command"`
	DaemonHealthURL string   `json:"daemon_health_url" yaml:"daemon_health_url" toml:"daemon_health_url"`
	Model           string   `json:"model" yaml:"model" toml:"model"`
	FetchCommand    []string `json:"fetch_command" yaml:"fetch_command" toml:"fetch_command"`
	OnFetchFailure  string   `json:"on_fetch_failure" yaml:"on_fetch_failure" toml:"on_fetch_failure"`
	AppCommand      []string `json:"app_command" yaml:"app_command" toml:"app_command"`

	StartupDelayMS     int `json:"startup_delay_ms" yaml:"startup_delay_ms" toml:"startup_delay_ms"`
	ReadinessTimeoutMS int `json:"readiness_timeout_ms" yaml:"readiness_timeout_ms" toml:"readiness_timeout_ms"`
	PollIntervalMS     int `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	FetchTimeoutMS     int `json:"fetch_timeout_ms" yaml:"fetch_timeout_ms" toml:"fetch_timeout_ms"`
	StopGraceMS        int `json:"stop_grace_ms" yaml:"stop_grace_ms" toml:"stop_grace_ms"`

	StatusAddr  string   `json:"status_addr" yaml:"status_addr" toml:"status_addr"`
	JournalPath string   `json:"journal_path" yaml:"journal_path" toml:"journal_path"`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields with ollama-style defaults:
// ollama serve, ollama pull, a 10s startup delay.
func (c *Config) ApplyDefaults() {
	if len(c.DaemonCommand) == 0 {
		c.DaemonCommand = []string{"ollama", "serve"}
	}
	if len(c.FetchCommand) == 0 && c.DaemonHealthURL == "" {
		c.FetchCommand = []string{"ollama", "pull"}
	}
	if c.OnFetchFailure == "" {
		c.OnFetchFailure = FetchContinue
	}
	if c.StartupDelayMS == 0 && c.DaemonHealthURL == "" {
		c.StartupDelayMS = 10000
	}
	if c.ReadinessTimeoutMS == 0 {
		c.ReadinessTimeoutMS = 60000
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = 1000
	}
	if c.StopGraceMS == 0 {
		c.StopGraceMS = 5000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that a merged configuration is runnable.
func (c Config) Validate() error {
	if len(c.DaemonCommand) == 0 {
		return fmt.Errorf("daemon_command is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if len(c.AppCommand) == 0 {
		return fmt.Errorf("app_command is required")
	}
	if len(c.FetchCommand) == 0 && c.DaemonHealthURL == "" {
		return fmt.Errorf("fetch_command or daemon_health_url is required to materialize the model")
	}
	switch c.OnFetchFailure {
	case FetchContinue, FetchAbort:
	default:
		return fmt.Errorf("on_fetch_failure must be %q or %q, got %q", FetchContinue, FetchAbort, c.OnFetchFailure)
	}
	if c.StartupDelayMS < 0 || c.ReadinessTimeoutMS < 0 || c.PollIntervalMS < 0 || c.FetchTimeoutMS < 0 || c.StopGraceMS < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/state/modelboot.db
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
