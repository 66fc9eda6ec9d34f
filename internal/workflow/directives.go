package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linkrelay/internal/checkpoint"
	"linkrelay/internal/logging"
	"linkrelay/internal/services"
)

// Enqueue appends links in order and returns how many were added. An idle
// controller with the run flag set starts a run.
func (c *Controller) Enqueue(ctx context.Context, links []string) (int, error) {
	var added int
	err := c.do(ctx, func(st *loopState) {
		added = st.queue.Enqueue(links)
		if added == 0 {
			return
		}
		c.logger.Info(
			"links enqueued",
			logging.String(logging.FieldEventType, "enqueue"),
			logging.Int("added", added),
			logging.Int("queue_length", st.queue.Len()),
		)
		if st.state == StateIdle && st.runFlag {
			c.startRun(st)
		}
	})
	return added, err
}

// Pause clears the run flag. The in-flight item, if any, runs to completion
// and no further item is dequeued.
func (c *Controller) Pause(ctx context.Context) error {
	return c.do(ctx, func(st *loopState) {
		st.runFlag = false
		if st.state == StateRunning {
			st.state = StatePaused
		}
		c.logger.Info(
			"workflow paused",
			logging.String(logging.FieldEventType, "pause"),
			logging.Bool("in_flight", st.inFlight != nil),
			logging.Int("queue_length", st.queue.Len()),
		)
	})
}

// Resume sets the run flag and continues processing when work remains.
func (c *Controller) Resume(ctx context.Context) error {
	return c.do(ctx, func(st *loopState) {
		st.runFlag = true
		switch {
		case st.queue.Len() > 0 || st.inFlight != nil:
			c.startRun(st)
		case st.state == StatePaused:
			// Nothing left to do; close the interrupted run without a summary.
			st.state = StateIdle
			st.run = nil
		}
		c.logger.Info(
			"workflow resumed",
			logging.String(logging.FieldEventType, "resume"),
			logging.String("state", string(st.state)),
			logging.Int("queue_length", st.queue.Len()),
		)
	})
}

// Skip discards the next n dequeued entries. Units are consumed lazily, so a
// skip issued on a short or empty queue carries over to later entries.
func (c *Controller) Skip(ctx context.Context, n int) error {
	if n < 1 {
		return services.Wrap(services.ErrInvalidInput, "skip", "", fmt.Sprintf("count must be at least 1, got %d", n), nil)
	}
	return c.do(ctx, func(st *loopState) {
		st.queue.ApplySkip(n)
		c.logger.Info(
			"skip applied",
			logging.String(logging.FieldEventType, "skip"),
			logging.Int("count", n),
			logging.Int("pending_skips", st.queue.PendingSkips()),
		)
	})
}

// CaptionNext stages text for the next n delivered items, replacing any
// caption already staged.
func (c *Controller) CaptionNext(ctx context.Context, n int, text string) error {
	if n < 1 {
		return services.Wrap(services.ErrInvalidInput, "caption", "", fmt.Sprintf("count must be at least 1, got %d", n), nil)
	}
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrInvalidInput, "caption", "", "caption text is empty", nil)
	}
	return c.do(ctx, func(st *loopState) {
		_, previous := st.queue.PendingCaption()
		st.queue.ApplyCaption(n, text)
		c.logger.Info(
			"caption staged",
			logging.String(logging.FieldEventType, "caption"),
			logging.Int("count", n),
			logging.Int("replaced_uses", previous),
		)
	})
}

// ClearAll drops every pending entry and resets the skip and caption counters.
// The run flag and the in-flight item are unaffected. A paused controller with
// nothing in flight returns to Idle.
func (c *Controller) ClearAll(ctx context.Context) (int, error) {
	var removed int
	err := c.do(ctx, func(st *loopState) {
		removed = st.queue.ClearAll()
		c.settlePaused(st)
		c.logger.Info(
			"queue cleared",
			logging.String(logging.FieldEventType, "clear"),
			logging.Int("removed", removed),
		)
	})
	return removed, err
}

// Remaining snapshots the pending links as a requested checkpoint. The queue
// and the periodic checkpoint counter are not modified.
func (c *Controller) Remaining(ctx context.Context) (checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	err := c.do(ctx, func(st *loopState) {
		cp = checkpoint.Checkpoint{
			Links:     st.queue.ExportRemaining(),
			Completed: st.completedSinceCheckpoint,
			LastLink:  st.lastLink,
			Reason:    checkpoint.ReasonRequested,
			CreatedAt: c.now(),
		}
		if st.run != nil {
			cp.BatchTotal = st.run.dequeued + st.queue.Len()
		}
	})
	return cp, err
}

// InFlight describes the item currently being relayed.
type InFlight struct {
	Link          string    `json:"link"`
	Index         int       `json:"index"`
	Total         int       `json:"total"`
	CorrelationID string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
}

// RunSummary reports progress through the current run.
type RunSummary struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// StatusSummary is a point-in-time view of the controller.
type StatusSummary struct {
	State                    State       `json:"state"`
	RunFlag                  bool        `json:"run_flag"`
	QueueLength              int         `json:"queue_length"`
	PendingSkips             int         `json:"pending_skips"`
	StagedCaption            string      `json:"staged_caption,omitempty"`
	CaptionsLeft             int         `json:"captions_left"`
	CompletedSinceCheckpoint int         `json:"completed_since_checkpoint"`
	CheckpointEvery          int         `json:"checkpoint_every"`
	CeilingBytes             int64       `json:"ceiling_bytes"`
	InFlight                 *InFlight   `json:"in_flight,omitempty"`
	Run                      *RunSummary `json:"run,omitempty"`
	LastLink                 string      `json:"last_link,omitempty"`
	LastError                string      `json:"last_error,omitempty"`
}

// Status returns the current controller state.
func (c *Controller) Status(ctx context.Context) (StatusSummary, error) {
	var summary StatusSummary
	err := c.do(ctx, func(st *loopState) {
		caption, left := st.queue.PendingCaption()
		summary = StatusSummary{
			State:                    st.state,
			RunFlag:                  st.runFlag,
			QueueLength:              st.queue.Len(),
			PendingSkips:             st.queue.PendingSkips(),
			StagedCaption:            caption,
			CaptionsLeft:             left,
			CompletedSinceCheckpoint: st.completedSinceCheckpoint,
			CheckpointEvery:          c.checkpointEvery,
			CeilingBytes:             c.ceiling,
			LastLink:                 st.lastLink,
			LastError:                st.lastError,
		}
		if j := st.inFlight; j != nil {
			summary.InFlight = &InFlight{
				Link:          j.link,
				Index:         j.index,
				Total:         j.total,
				CorrelationID: j.correlationID,
				StartedAt:     j.startedAt,
			}
		}
		if run := st.run; run != nil {
			summary.Run = &RunSummary{
				ID:        run.id,
				StartedAt: run.startedAt,
				Delivered: run.delivered,
				Failed:    run.failed,
				Skipped:   run.skipped,
			}
		}
	})
	return summary, err
}
