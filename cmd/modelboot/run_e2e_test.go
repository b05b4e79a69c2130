package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelboot/internal/journal"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return p
}

func TestRunCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	order := filepath.Join(dir, "order")
	daemon := writeScript(t, dir, "daemon", fmt.Sprintf("echo daemon >> %s\nexec sleep 30", order))
	fetch := writeScript(t, dir, "fetch", fmt.Sprintf("echo \"fetch $1\" >> %s", order))
	app := writeScript(t, dir, "app", fmt.Sprintf("echo \"app $1\" >> %s", order))
	jpath := filepath.Join(dir, "journal.db")

	code, err := run([]string{"run",
		"--daemon", daemon,
		"--model", "llama3.1:8b",
		"--fetch", fetch,
		"--app", app,
		"--startup-delay-ms", "0",
		"--stop-grace-ms", "2000",
		"--journal", jpath,
		"--log-level", "error",
		"--", "extra-arg",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}

	b, err := os.ReadFile(order)
	if err != nil {
		t.Fatalf("order file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	want := []string{"daemon", "fetch llama3.1:8b", "app extra-arg"}
	if len(lines) != len(want) {
		t.Fatalf("order = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("order = %v, want %v", lines, want)
		}
	}

	jnl, err := journal.Open(jpath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer jnl.Close()
	runs, err := jnl.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ExitCode != 0 || runs[0].Model != "llama3.1:8b" {
		t.Fatalf("journal runs = %+v", runs)
	}
	steps, err := jnl.Steps(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 journal steps, got %d", len(steps))
	}
}

func TestRunCommandPropagatesAppExit(t *testing.T) {
	dir := t.TempDir()
	daemon := writeScript(t, dir, "daemon", "exec sleep 30")
	fetch := writeScript(t, dir, "fetch", "exit 0")
	app := writeScript(t, dir, "app", "exit 5")

	code, err := run([]string{"run",
		"--daemon", daemon,
		"--model", "m",
		"--fetch", fetch,
		"--app", app,
		"--startup-delay-ms", "0",
		"--stop-grace-ms", "2000",
		"--log-level", "error",
	})
	if err == nil {
		t.Fatalf("expected error for nonzero app exit")
	}
	if code != 5 {
		t.Fatalf("exit code = %d, want 5", code)
	}
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	code, err := run([]string{"run", "--model", "m", "--log-level", "error"})
	if err == nil {
		t.Fatalf("expected validation error without an app command")
	}
	// main() maps an error with no recorded exit code to 1.
	if code != 0 {
		t.Fatalf("no sequence ran, expected code 0 from run(), got %d", code)
	}
}

func TestMergedConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	content := "daemon_command: [ollama, serve]\nmodel: from-file\napp_command: [app]\nfetch_command: [ollama, pull]\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write cfg: %v", err)
	}
	daemon := writeScript(t, dir, "daemon", "exec sleep 30")
	app := writeScript(t, dir, "app", "exit 0")
	fetch := writeScript(t, dir, "fetch", "exit 0")

	// Flags override the file; the file supplies the rest.
	code, err := run([]string{"run",
		"--config", cfgPath,
		"--daemon", daemon,
		"--model", "from-flag",
		"--fetch", fetch,
		"--app", app,
		"--startup-delay-ms", "0",
		"--stop-grace-ms", "2000",
		"--journal", filepath.Join(dir, "j.db"),
		"--log-level", "error",
	})
	if err != nil || code != 0 {
		t.Fatalf("run: code=%d err=%v", code, err)
	}
	jnl, err := journal.Open(filepath.Join(dir, "j.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer jnl.Close()
	runs, err := jnl.Runs(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs: %v err=%v", runs, err)
	}
	if runs[0].Model != "from-flag" {
		t.Fatalf("flag should override file model, got %q", runs[0].Model)
	}
}
