package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml",
		"daemon_command: [ollama, serve]\nmodel: llama3.1:8b\napp_command: [python, app.py]\nstartup_delay_ms: 2500\non_fetch_failure: abort\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.DaemonCommand) != 2 || cfg.DaemonCommand[0] != "ollama" {
		t.Fatalf("unexpected daemon command: %v", cfg.DaemonCommand)
	}
	if cfg.Model != "llama3.1:8b" || cfg.StartupDelayMS != 2500 || cfg.OnFetchFailure != FetchAbort {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json",
		`{"daemon_command":["ollama","serve"],"model":"m1","app_command":["app"],"status_addr":":8090","journal_path":"/tmp/j.db"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "m1" || cfg.StatusAddr != ":8090" || cfg.JournalPath != "/tmp/j.db" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml",
		"daemon_command=[\"ollama\",\"serve\"]\nmodel=\"m2\"\napp_command=[\"app\"]\nreadiness_timeout_ms=30000\ncors_enabled=true\ncors_origins=[\"*\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "m2" || cfg.ReadinessTimeoutMS != 30000 || !cfg.CORSEnabled || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.ini", "x=1")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error on unsupported extension")
	}
	p2 := writeTempFile(t, d, "bad.yaml", ":\n-:")
	if _, err := Load(p2); err == nil {
		t.Fatalf("expected error on malformed yaml")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.DaemonCommand[0] != "ollama" || cfg.FetchCommand[1] != "pull" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StartupDelayMS != 10000 || cfg.OnFetchFailure != FetchContinue || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	// With a health URL the fixed delay gives way to polling and the fetch
	// defaults to the daemon API.
	cfg = Config{DaemonHealthURL: "http://127.0.0.1:11434/api/version"}
	cfg.ApplyDefaults()
	if cfg.StartupDelayMS != 0 || len(cfg.FetchCommand) != 0 {
		t.Fatalf("health-url defaults wrong: %+v", cfg)
	}
	if cfg.ReadinessTimeoutMS != 60000 || cfg.PollIntervalMS != 1000 {
		t.Fatalf("health-url defaults wrong: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	good := Config{
		DaemonCommand:  []string{"ollama", "serve"},
		Model:          "llama3.1:8b",
		FetchCommand:   []string{"ollama", "pull"},
		AppCommand:     []string{"python", "app.py"},
		OnFetchFailure: FetchContinue,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no daemon", func(c *Config) { c.DaemonCommand = nil }},
		{"no model", func(c *Config) { c.Model = " " }},
		{"no app", func(c *Config) { c.AppCommand = nil }},
		{"no fetch path", func(c *Config) { c.FetchCommand = nil; c.DaemonHealthURL = "" }},
		{"bad policy", func(c *Config) { c.OnFetchFailure = "retry" }},
		{"negative delay", func(c *Config) { c.StartupDelayMS = -1 }},
	}
	for _, tc := range cases {
		cfg := good
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got, err := ExpandHome("~/state/modelboot.db")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "state", "modelboot.db") {
		t.Fatalf("unexpected expansion: %s", got)
	}
	if got, _ := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path should pass through, got %s", got)
	}
	if got, _ := ExpandHome(""); got != "" {
		t.Fatalf("empty path should pass through, got %s", got)
	}
}
