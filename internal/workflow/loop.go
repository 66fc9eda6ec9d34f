package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/history"
	"linkrelay/internal/logging"
	"linkrelay/internal/notifications"
	"linkrelay/internal/queue"
	"linkrelay/internal/services"
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// loopState is owned by the loop goroutine. Nothing else reads or writes it.
type loopState struct {
	queue    *queue.Queue
	state    State
	runFlag  bool
	inFlight *job
	sequence int64

	completedSinceCheckpoint int
	lastLink                 string
	lastError                string
	run                      *runStats
}

type runStats struct {
	id        string
	startedAt time.Time
	dequeued  int
	delivered int
	failed    int
	skipped   int
}

type job struct {
	seq           int64
	correlationID string
	runID         string
	link          string
	index         int
	total         int
	startedAt     time.Time
}

func newLoopState(runFlag bool) *loopState {
	return &loopState{
		queue:   queue.New(),
		state:   StateIdle,
		runFlag: runFlag,
	}
}

func (c *Controller) run(ctx context.Context, st *loopState, stopped chan struct{}) {
	defer c.wg.Done()
	defer close(stopped)

	var workers sync.WaitGroup
	defer workers.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.inbox:
			req.apply(st)
			close(req.done)
		case claim := <-c.claims:
			claim.reply <- c.claimCaption(ctx, st)
		case res := <-c.results:
			c.finishItem(ctx, st, res)
		}
		c.advance(ctx, st, &workers)
	}
}

// advance dequeues the next entry when the run flag is set and nothing is in
// flight. Skipped entries are consumed in place. When the queue drains during
// a run, QueueEmpty is published and the controller returns to Idle.
func (c *Controller) advance(ctx context.Context, st *loopState, workers *sync.WaitGroup) {
	if ctx.Err() != nil || st.inFlight != nil || st.state != StateRunning {
		return
	}
	for {
		entry, ok := st.queue.DequeueNext()
		if !ok {
			c.finishRun(ctx, st)
			return
		}
		st.run.dequeued++
		if st.queue.TakeSkip() {
			c.skipItem(ctx, st, entry)
			continue
		}
		st.sequence++
		j := &job{
			seq:           st.sequence,
			correlationID: uuid.NewString(),
			runID:         st.run.id,
			link:          entry.Link,
			index:         st.run.dequeued,
			total:         st.run.dequeued + st.queue.Len(),
			startedAt:     c.now(),
		}
		st.inFlight = j
		c.publish(ctx, notifications.EventItemStarted, notifications.Payload{
			notifications.KeyLink:  j.link,
			notifications.KeyIndex: j.index,
			notifications.KeyTotal: j.total,
		})
		workers.Go(func() { c.process(ctx, *j) })
		return
	}
}

// startRun moves an idle controller into Running and opens run statistics.
func (c *Controller) startRun(st *loopState) {
	st.state = StateRunning
	if st.run != nil {
		return
	}
	st.run = &runStats{id: uuid.NewString(), startedAt: c.now()}
	c.logger.Info(
		"run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String(logging.FieldRunID, st.run.id),
		logging.Int("queued", st.queue.Len()),
	)
}

func (c *Controller) finishRun(ctx context.Context, st *loopState) {
	st.state = StateIdle
	run := st.run
	st.run = nil
	if run == nil {
		return
	}
	elapsed := c.now().Sub(run.startedAt)
	c.logger.Info(
		"queue empty",
		logging.String(logging.FieldEventType, "queue_empty"),
		logging.String(logging.FieldRunID, run.id),
		logging.Int("delivered", run.delivered),
		logging.Int("failed", run.failed),
		logging.Int("skipped", run.skipped),
		logging.Duration("elapsed", elapsed),
	)
	c.publish(ctx, notifications.EventQueueEmpty, notifications.Payload{
		notifications.KeyDelivered: run.delivered,
		notifications.KeyFailed:    run.failed,
		notifications.KeySkipped:   run.skipped,
		notifications.KeyElapsed:   elapsed,
	})
}

func (c *Controller) skipItem(ctx context.Context, st *loopState, entry queue.Entry) {
	st.run.skipped++
	now := c.now()
	c.logger.Info(
		"item skipped",
		logging.String(logging.FieldEventType, "item_skipped"),
		logging.Link(entry.Link),
		logging.Int("pending_skips", st.queue.PendingSkips()),
	)
	c.record(ctx, history.Record{
		RunID:      st.run.id,
		Link:       entry.Link,
		Outcome:    history.OutcomeSkipped,
		StartedAt:  now,
		FinishedAt: now,
	})
	c.publish(ctx, notifications.EventItemSkipped, notifications.Payload{
		notifications.KeyLink:      entry.Link,
		notifications.KeyRemaining: st.queue.Len(),
	})
}

// claimCaption consumes one staged caption use on behalf of the worker.
func (c *Controller) claimCaption(ctx context.Context, st *loopState) claimReply {
	text, ok := st.queue.ClaimCaption()
	if !ok {
		return claimReply{}
	}
	if _, left := st.queue.PendingCaption(); left == 0 {
		c.logger.Info("caption exhausted", logging.String(logging.FieldEventType, "caption_exhausted"))
		c.publish(ctx, notifications.EventCaptionExhausted, notifications.Payload{
			notifications.KeyCaption: text,
		})
	}
	return claimReply{caption: text, claimed: true}
}

func (c *Controller) finishItem(ctx context.Context, st *loopState, res itemResult) {
	st.inFlight = nil
	defer c.settlePaused(st)
	st.lastLink = res.job.link
	run := st.run
	if run == nil {
		run = &runStats{}
	}

	if res.err != nil {
		run.failed++
		st.lastError = res.err.Error()
		payload := notifications.Payload{
			notifications.KeyLink:    res.job.link,
			notifications.KeyReason:  services.Reason(res.err),
			notifications.KeyError:   res.err.Error(),
			notifications.KeyCeiling: c.ceiling,
		}
		if size, ok := services.OversizeBytes(res.err); ok {
			payload[notifications.KeySizeBytes] = size
		}
		c.publish(ctx, notifications.EventItemFailed, payload)
		return
	}

	run.delivered++
	st.completedSinceCheckpoint++
	c.publish(ctx, notifications.EventItemSucceeded, notifications.Payload{
		notifications.KeyLink:      res.job.link,
		notifications.KeySizeBytes: res.sizeBytes,
		notifications.KeyLabel:     res.label,
		notifications.KeyCaption:   res.caption,
		notifications.KeyRemaining: st.queue.Len(),
	})
	if st.completedSinceCheckpoint >= c.checkpointEvery {
		cp := checkpoint.Checkpoint{
			Links:      st.queue.ExportRemaining(),
			Completed:  st.completedSinceCheckpoint,
			BatchTotal: run.dequeued + st.queue.Len(),
			LastLink:   st.lastLink,
			Reason:     checkpoint.ReasonPeriodic,
			CreatedAt:  c.now(),
		}
		st.completedSinceCheckpoint = 0
		c.exportCheckpoint(ctx, cp)
	}
}

// settlePaused returns a paused controller to Idle once its last in-flight
// item has finished and nothing is queued. The run flag stays cleared and the
// interrupted run closes without a QueueEmpty summary.
func (c *Controller) settlePaused(st *loopState) {
	if st.state != StatePaused || st.inFlight != nil || st.queue.Len() > 0 {
		return
	}
	st.state = StateIdle
	st.run = nil
	c.logger.Info(
		"paused run settled",
		logging.String(logging.FieldEventType, "pause_settled"),
		logging.String("reason", "queue drained while paused"),
	)
}

func (c *Controller) exportCheckpoint(ctx context.Context, cp checkpoint.Checkpoint) {
	payload := notifications.Payload{notifications.KeyCheckpoint: cp}
	if c.exporter != nil {
		path, err := c.exporter.Export(ctx, cp)
		if err != nil {
			logging.WarnWithContext(c.logger, "checkpoint export failed", "checkpoint_export_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.checkpoint_dir permissions"),
				logging.String(logging.FieldImpact, "checkpoint not saved to disk; chat copy still sent"),
			)
		} else if path != "" {
			payload[notifications.KeyPath] = path
		}
	}
	c.logger.Info(
		"checkpoint exported",
		logging.String(logging.FieldEventType, "checkpoint_exported"),
		logging.Int("remaining", cp.Remaining()),
		logging.String("path", payloadPath(payload)),
	)
	c.publish(ctx, notifications.EventCheckpointExported, payload)
}

func payloadPath(payload notifications.Payload) string {
	if path, ok := payload[notifications.KeyPath].(string); ok {
		return path
	}
	return ""
}

func (c *Controller) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("controller shutting down, notification not sent", logging.String("event", string(event)))
			return
		}
		logging.WarnWithContext(c.logger, "notification publish failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification backend configuration"),
			logging.String(logging.FieldImpact, "operator was not notified"),
		)
	}
}

func (c *Controller) record(ctx context.Context, rec history.Record) {
	if c.history == nil {
		return
	}
	if _, err := c.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(c.logger, "history record failed", "history_record_failed",
			logging.Link(rec.Link),
			logging.Error(err),
			logging.String(logging.FieldImpact, "outcome missing from history"),
		)
	}
}
