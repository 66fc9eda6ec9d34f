package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/config"
	"linkrelay/internal/deps"
	"linkrelay/internal/history"
	"linkrelay/internal/linksource"
	"linkrelay/internal/logging"
	"linkrelay/internal/notifications"
	"linkrelay/internal/workflow"
)

const outboxDrainTimeout = 10 * time.Second

// Bot consumes operator updates until its context is cancelled.
type Bot interface {
	Run(ctx context.Context) error
}

// Closer releases a component that buffers work, such as the async notifier.
type Closer interface {
	Close(ctx context.Context) error
}

// Components are the collaborators the daemon owns. Controller is required.
type Components struct {
	Controller *workflow.Controller
	Bot        Bot
	History    *history.Store
	Expander   *linksource.Expander
	// Notifier delivers synchronously and is used for test notifications.
	Notifier notifications.Service
	// Outbox is drained on Close so queued notifications are not lost.
	Outbox Closer
}

// Daemon coordinates the relay services and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	controller *workflow.Controller
	bot        Bot
	history    *history.Store
	expander   *linksource.Expander
	notifier   notifications.Service
	outbox     Closer
	logPath    string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stopOnce sync.Once
	stopped  chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     *workflow.StatusSummary
	History      history.Stats
	Dependencies []deps.Status
	LockFilePath string
	LogPath      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, components Components) (*Daemon, error) {
	if cfg == nil || components.Controller == nil {
		return nil, errors.New("daemon requires config and workflow controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		controller: components.Controller,
		bot:        components.Bot,
		history:    components.History,
		expander:   components.Expander,
		notifier:   components.Notifier,
		outbox:     components.Outbox,
		logPath:    filepath.Join(cfg.Paths.LogDir, "linkrelay.log"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		stopped:    make(chan struct{}),
	}, nil
}

// Start acquires the daemon lock, then launches the controller and the bot.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another linkrelay daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.controller.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	if d.bot != nil {
		d.wg.Go(func() {
			if err := d.bot.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(d.logger, "telegram bot stopped", "telegram_bot_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the bot token and network access, then restart the daemon"),
					logging.String(logging.FieldImpact, "operator commands are not received"),
				)
			}
		})
	}

	d.running.Store(true)
	d.logger.Info("linkrelay daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop halts the bot and the controller and releases the daemon lock. The
// first call also closes Done.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.controller.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("linkrelay daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Done is closed once Stop has been requested.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopped
}

// Close stops the daemon, drains queued notifications and closes the history
// store.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.outbox != nil {
		ctx, cancel := context.WithTimeout(context.Background(), outboxDrainTimeout)
		if err := d.outbox.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
		cancel()
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Running reports whether the daemon is started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Enqueue validates each link, expands playlists and appends the result.
func (d *Daemon) Enqueue(ctx context.Context, links []string) (int, error) {
	accepted := make([]string, 0, len(links))
	for _, raw := range links {
		parsed, err := linksource.FromMessage(raw)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", raw, err)
		}
		accepted = append(accepted, parsed...)
	}
	accepted = d.expander.Expand(ctx, accepted)
	added, err := d.controller.Enqueue(ctx, accepted)
	if err != nil {
		return 0, err
	}
	d.logger.Info("links queued via control socket",
		logging.String(logging.FieldEventType, "enqueue_ipc"),
		logging.Int("added", added),
	)
	return added, nil
}

// Pause forwards to the controller.
func (d *Daemon) Pause(ctx context.Context) error { return d.controller.Pause(ctx) }

// Resume forwards to the controller.
func (d *Daemon) Resume(ctx context.Context) error { return d.controller.Resume(ctx) }

// Skip forwards to the controller.
func (d *Daemon) Skip(ctx context.Context, n int) error { return d.controller.Skip(ctx, n) }

// CaptionNext forwards to the controller.
func (d *Daemon) CaptionNext(ctx context.Context, n int, text string) error {
	return d.controller.CaptionNext(ctx, n, text)
}

// ClearAll forwards to the controller.
func (d *Daemon) ClearAll(ctx context.Context) (int, error) { return d.controller.ClearAll(ctx) }

// Remaining forwards to the controller.
func (d *Daemon) Remaining(ctx context.Context) (checkpoint.Checkpoint, error) {
	return d.controller.Remaining(ctx)
}

// Pipeline returns the controller status without probing dependencies.
func (d *Daemon) Pipeline(ctx context.Context) (workflow.StatusSummary, error) {
	return d.controller.Status(ctx)
}

// History returns the most recent outcomes, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Record, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.Recent(ctx, limit)
}

// TestNotification sends a test event through every configured channel.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.notifier == nil {
		return false, "no notification channel configured", nil
	}
	payload := notifications.Payload{notifications.KeyLink: "linkrelay test notification"}
	if err := d.notifier.Publish(ctx, notifications.EventTestNotification, payload); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Dependencies: deps.CheckBinaries(ctx, deps.RelayRequirements(d.cfg)),
	}
	if status.Running {
		if summary, err := d.controller.Status(ctx); err == nil {
			status.Workflow = &summary
		}
	}
	if d.history != nil {
		if stats, err := d.history.Stats(ctx, ""); err == nil {
			status.History = stats
		}
	}
	return status
}
