package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQueueCommandsSteerPausedPipeline(t *testing.T) {
	env := setupCLITestEnv(t)

	batch := filepath.Join(t.TempDir(), "links.txt")
	if err := os.WriteFile(batch, []byte("https://c.example/3\n\n"), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "add", "https://a.example/1", "https://b.example/2", "--file", batch}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued 3 link(s)")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "https://a.example/1")
	requireContains(t, out, "https://c.example/3")

	out, _, err = runCLI(t, []string{"queue", "skip", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue skip: %v", err)
	}
	requireContains(t, out, "2 link(s) will be skipped")

	out, _, err = runCLI(t, []string{"queue", "caption", "--count", "2", "holiday", "clips"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue caption: %v", err)
	}
	requireContains(t, out, "next 2 file(s)")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Idle (run flag no)")
	requireContains(t, out, `"holiday clips" for next 2`)

	out, _, err = runCLI(t, []string{"queue", "export", "--output", "-"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue export stdout: %v", err)
	}
	if out != "https://a.example/1\nhttps://b.example/2\nhttps://c.example/3\n" {
		t.Fatalf("unexpected export body %q", out)
	}

	target := filepath.Join(t.TempDir(), "out", "remaining.txt")
	out, _, err = runCLI(t, []string{"queue", "export", "-o", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue export file: %v", err)
	}
	requireContains(t, out, "Exported 3 link(s)")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if strings.Count(string(data), "\n") != 3 {
		t.Fatalf("expected 3 exported lines, got %q", data)
	}

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 3 link(s)")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list after clear: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueAddRejectsInvalidBatch(t *testing.T) {
	env := setupCLITestEnv(t)

	batch := filepath.Join(t.TempDir(), "links.txt")
	if err := os.WriteFile(batch, []byte("https://ok.example\nnot a link\n"), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if _, _, err := runCLI(t, []string{"queue", "add", "--file", batch}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid batch to be rejected")
	}
	if _, _, err := runCLI(t, []string{"queue", "add"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error without links")
	}
	if _, _, err := runCLI(t, []string{"queue", "add", "ftp://files.example/a"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected daemon to reject non-http link")
	}

	out, _, err := runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueSkipRejectsBadCount(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, arg := range []string{"0", "-1", "many"} {
		if _, _, err := runCLI(t, []string{"queue", "skip", arg}, env.socketPath, env.configPath); err == nil {
			t.Fatalf("expected skip %q to fail", arg)
		}
	}
}

func TestQueuePauseResumeReportState(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "resume"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue resume: %v", err)
	}
	requireContains(t, out, "Pipeline idle")

	out, _, err = runCLI(t, []string{"queue", "pause"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue pause: %v", err)
	}
	requireContains(t, out, "Pipeline idle")
}
