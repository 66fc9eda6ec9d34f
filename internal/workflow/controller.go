package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/config"
	"linkrelay/internal/history"
	"linkrelay/internal/logging"
	"linkrelay/internal/notifications"
	"linkrelay/internal/resolver"
)

// ErrStopped is returned by directives sent after the controller has stopped.
var ErrStopped = errors.New("controller not running")

// Sink delivers a selected rendition and returns the transferred size.
type Sink interface {
	Deliver(ctx context.Context, handle resolver.Handle, caption string) (int64, error)
}

// Recorder persists per-item outcomes.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) (int64, error)
}

// Dependencies are the collaborators the controller drives.
type Dependencies struct {
	Resolver resolver.Resolver
	Sink     Sink
	Notifier notifications.Service
	Exporter checkpoint.Exporter
	History  Recorder
}

// Controller sequences queued links through resolve, select, and deliver.
type Controller struct {
	resolver        resolver.Resolver
	sink            Sink
	notifier        notifications.Service
	exporter        checkpoint.Exporter
	history         Recorder
	logger          *slog.Logger
	ceiling         int64
	checkpointEvery int
	startPaused     bool
	now             func() time.Time

	inbox   chan request
	claims  chan claimRequest
	results chan itemResult

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

type request struct {
	apply func(*loopState)
	done  chan struct{}
}

// NewController constructs a controller. Resolver and Sink are required.
func NewController(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("workflow: resolver is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("workflow: sink is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	every := cfg.Workflow.CheckpointEvery
	if every <= 0 {
		every = 5
	}
	stopped := make(chan struct{})
	close(stopped)
	return &Controller{
		resolver:        deps.Resolver,
		sink:            deps.Sink,
		notifier:        deps.Notifier,
		exporter:        deps.Exporter,
		history:         deps.History,
		logger:          logging.NewComponentLogger(logger, "workflow"),
		ceiling:         cfg.MaxSizeBytes(),
		checkpointEvery: every,
		startPaused:     cfg.Workflow.StartPaused,
		now:             time.Now,
		inbox:           make(chan request),
		claims:          make(chan claimRequest),
		results:         make(chan itemResult),
		stopped:         stopped,
	}, nil
}

// Start launches the controller loop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.stopped = make(chan struct{})

	st := newLoopState(!c.startPaused)
	c.wg.Add(1)
	go c.run(runCtx, st, c.stopped)
	c.logger.Info(
		"workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Bool("run_flag", st.runFlag),
		logging.Int("checkpoint_every", c.checkpointEvery),
		logging.Int64("ceiling_bytes", c.ceiling),
	)
	return nil
}

// Stop cancels the loop and any in-flight item and waits for both to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

// do runs apply on the loop goroutine and waits for it to finish. The inbox is
// unbuffered, so once the send succeeds the loop is already executing apply.
func (c *Controller) do(ctx context.Context, apply func(*loopState)) error {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()

	req := request{apply: apply, done: make(chan struct{})}
	select {
	case c.inbox <- req:
	case <-stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}
