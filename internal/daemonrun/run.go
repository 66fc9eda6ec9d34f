package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/commands"
	"linkrelay/internal/config"
	"linkrelay/internal/daemon"
	"linkrelay/internal/deps"
	"linkrelay/internal/history"
	"linkrelay/internal/ipc"
	"linkrelay/internal/linksource"
	"linkrelay/internal/logging"
	"linkrelay/internal/notifications"
	"linkrelay/internal/resolver"
	"linkrelay/internal/telegram"
	"linkrelay/internal/transfer"
	"linkrelay/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the linkrelay daemon and blocks until a signal arrives or the
// daemon is stopped over the control socket.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("session_id", uuid.NewString()))
	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := build(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon assembly failed", "daemon_build_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run linkrelay config validate and check the bot token"),
		)
		return err
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("linkrelay daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// build wires the relay: Telegram client, notification fan-out, resolver
// chain, transfer relay, controller, command interpreter and bot.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	client, err := telegram.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	channels := notifications.Multi{notifications.NewService(cfg)}
	if cfg.Notifications.OperatorChat {
		channels = append(channels, telegram.NewNotifier(client))
	}
	outbox := notifications.NewAsync(channels, cfg.Notifications.Buffer, logger)

	chain, err := resolver.New(cfg, logger)
	if err != nil {
		_ = outbox.Close(ctx)
		return nil, fmt.Errorf("build resolver: %w", err)
	}

	store, err := history.Open(ctx)
	if err != nil {
		_ = outbox.Close(ctx)
		return nil, fmt.Errorf("open history: %w", err)
	}

	ctrl, err := workflow.NewController(cfg, workflow.Dependencies{
		Resolver: chain,
		Sink:     transfer.NewRelay(cfg, client, logger),
		Notifier: outbox,
		Exporter: checkpoint.DirExporter{Dir: cfg.Paths.CheckpointDir},
		History:  store,
	}, logger)
	if err != nil {
		_ = outbox.Close(ctx)
		_ = store.Close()
		return nil, fmt.Errorf("build controller: %w", err)
	}

	expander := linksource.NewExpander(cfg, logger)
	interpreter := commands.NewInterpreter(ctrl, expander, logger)

	return daemon.New(cfg, logger, daemon.Components{
		Controller: ctrl,
		Bot:        telegram.NewBot(client, interpreter),
		History:    store,
		Expander:   expander,
		Notifier:   channels,
		Outbox:     outbox,
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("resolver_backends", strings.Join(cfg.Resolver.Backends, ",")),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("operator_chat", cfg.Notifications.OperatorChat),
		logging.Int64("ceiling_bytes", cfg.MaxSizeBytes()),
	}
	for _, status := range deps.CheckBinaries(ctx, deps.RelayRequirements(cfg)) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, "-", "_"))
		attrs = append(attrs, logging.Bool(key+"_available", status.Available))
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
