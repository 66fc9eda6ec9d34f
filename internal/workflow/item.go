package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"linkrelay/internal/history"
	"linkrelay/internal/logging"
	"linkrelay/internal/resolver"
	"linkrelay/internal/services"
)

type claimRequest struct {
	reply chan claimReply
}

type claimReply struct {
	caption string
	claimed bool
}

type itemResult struct {
	job       job
	sizeBytes int64
	label     string
	caption   string
	err       error
}

// process runs resolve, select, caption claim, and delivery for one item and
// reports the outcome to the loop. It never touches loop state directly.
func (c *Controller) process(ctx context.Context, j job) {
	ctx = services.WithItemID(ctx, j.seq)
	ctx = services.WithRunID(ctx, j.runID)
	ctx = services.WithRequestID(ctx, j.correlationID)
	logger := logging.WithContext(ctx, c.logger).With(logging.Link(j.link))

	res := itemResult{job: j}
	logger.Info(
		"item started",
		logging.String(logging.FieldEventType, "item_start"),
		logging.Int("index", j.index),
		logging.Int("total", j.total),
	)

	rendition, err := c.resolveItem(services.WithStage(ctx, "resolve"), logger, j.link)
	if err == nil {
		caption, ok := c.requestCaption(ctx)
		if ok {
			res.caption = caption
		}
		res.label = rendition.Label
		res.sizeBytes, err = c.deliverItem(services.WithStage(ctx, "transfer"), rendition, res.caption)
	}
	res.err = err

	finished := c.now()
	c.record(ctx, outcomeRecord(res, finished))
	if err != nil {
		logging.WarnWithContext(logger, "item failed", "item_failed",
			logging.String("reason", services.Reason(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, failureHint(err)),
			logging.String(logging.FieldImpact, "link was not relayed"),
			logging.Duration("item_duration", finished.Sub(j.startedAt)),
		)
	} else {
		logger.Info(
			"item delivered",
			logging.String(logging.FieldEventType, "item_delivered"),
			logging.SizeBytes(res.sizeBytes),
			logging.String("rendition", res.label),
			logging.Bool("captioned", res.caption != ""),
			logging.Duration("item_duration", finished.Sub(j.startedAt)),
		)
	}

	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

func (c *Controller) resolveItem(ctx context.Context, logger *slog.Logger, link string) (resolver.Rendition, error) {
	renditions, err := c.resolver.Resolve(ctx, link)
	if err != nil {
		if !errors.Is(err, services.ErrResolutionFailed) {
			err = services.Wrap(services.ErrResolutionFailed, "resolve", "lookup renditions", "", err)
		}
		return resolver.Rendition{}, err
	}
	chosen, err := resolver.Select(renditions, c.ceiling)
	if err != nil {
		return resolver.Rendition{}, err
	}
	logger.Debug(
		"rendition selected",
		logging.String(logging.FieldStage, "select"),
		logging.String("rendition", chosen.Label),
		logging.String("backend", chosen.Backend),
		logging.SizeBytes(chosen.SizeBytes),
		logging.Int("candidates", len(renditions)),
	)
	return chosen, nil
}

func (c *Controller) deliverItem(ctx context.Context, rendition resolver.Rendition, caption string) (int64, error) {
	if rendition.Handle == nil {
		return 0, services.Wrap(services.ErrTransferFailed, "transfer", "fetch", "rendition has no fetch handle", nil)
	}
	size, err := c.sink.Deliver(ctx, rendition.Handle, caption)
	if err != nil && !errors.Is(err, services.ErrTooLarge) && !errors.Is(err, services.ErrTransferFailed) {
		err = services.Wrap(services.ErrTransferFailed, "transfer", "deliver", "", err)
	}
	return size, err
}

// requestCaption asks the loop to consume one caption use. The loop decides,
// so a directive issued while this item resolved still applies to it.
func (c *Controller) requestCaption(ctx context.Context) (string, bool) {
	req := claimRequest{reply: make(chan claimReply, 1)}
	select {
	case c.claims <- req:
	case <-ctx.Done():
		return "", false
	}
	select {
	case reply := <-req.reply:
		return reply.caption, reply.claimed
	case <-ctx.Done():
		return "", false
	}
}

func outcomeRecord(res itemResult, finished time.Time) history.Record {
	rec := history.Record{
		RunID:         res.job.runID,
		CorrelationID: res.job.correlationID,
		Link:          res.job.link,
		Outcome:       history.OutcomeDelivered,
		SizeBytes:     res.sizeBytes,
		Caption:       res.caption,
		StartedAt:     res.job.startedAt,
		FinishedAt:    finished,
	}
	if res.err != nil {
		rec.Outcome = history.OutcomeFailed
		rec.Reason = services.Reason(res.err)
		rec.SizeBytes, _ = services.OversizeBytes(res.err)
	}
	return rec
}

func failureHint(err error) string {
	switch services.Reason(err) {
	case services.ReasonTooLarge:
		return "no rendition fits transfer.max_size_mb; send a shorter clip or raise the limit"
	case services.ReasonResolutionFailed:
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "executable file not found") {
			return "install yt-dlp or set resolver.ytdlp_binary"
		}
		return "check the link is public and supported by the resolver backends"
	default:
		return "check network access and the Telegram target chat permissions"
	}
}
