package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linkrelay/internal/config"
	"linkrelay/internal/daemon"
	"linkrelay/internal/history"
	"linkrelay/internal/ipc"
	"linkrelay/internal/logging"
	"linkrelay/internal/resolver"
	"linkrelay/internal/testsupport"
	"linkrelay/internal/workflow"
)

type idleResolver struct{}

func (idleResolver) Resolve(context.Context, string) ([]resolver.Rendition, error) {
	return nil, nil
}

type idleSink struct{}

func (idleSink) Deliver(context.Context, resolver.Handle, string) (int64, error) {
	return 0, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	logPath    string
}

// setupCLITestEnv runs a paused daemon behind an IPC socket so queue
// commands can be observed without any link being processed.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_ADMIN_ID", "")
	t.Setenv("TELEGRAM_TARGET_CHAT_ID", "")

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Workflow.StartPaused = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "linkrelay", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store, err := history.Open(context.Background())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}

	logger := logging.NewNop()
	ctrl, err := workflow.NewController(cfg, workflow.Dependencies{
		Resolver: idleResolver{},
		Sink:     idleSink{},
		History:  store,
	}, logger)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	d, err := daemon.New(cfg, logger, daemon.Components{Controller: ctrl, History: store})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		logPath:    d.LogPath(),
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ntemp_dir = %q\nlog_dir = %q\ncheckpoint_dir = %q\n\n"+
			"[telegram]\nbot_token = %q\nadmin_user_id = %d\ntarget_chat_id = %d\n\n"+
			"[workflow]\nstart_paused = true\n",
		cfg.Paths.TempDir,
		cfg.Paths.LogDir,
		cfg.Paths.CheckpointDir,
		cfg.Telegram.BotToken,
		cfg.Telegram.AdminUserID,
		cfg.Telegram.TargetChatID,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
